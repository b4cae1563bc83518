package params

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Fees struct {
	MakerBps int64
	TakerBps int64
}

type Faucet struct {
	Enabled  bool
	Cooldown time.Duration
	MaxDrip  int64
}

type API struct {
	ListenAddr     string
	AllowedOrigins []string
}

type P2P struct {
	Enabled    bool
	ListenAddr string
	Bootstrap  []string
}

type Signing struct {
	ChainID *big.Int
}

type Node struct {
	DataDir string
	LogFile string
	Admin   common.Address
}

type Config struct {
	Node    Node
	Fees    Fees
	Faucet  Faucet
	API     API
	P2P     P2P
	Signing Signing
}

func Default() Config {
	return Config{
		Node: Node{
			DataDir: "data",
			LogFile: "",
		},
		Fees: Fees{
			MakerBps: 10,
			TakerBps: 20,
		},
		Faucet: Faucet{
			Enabled:  true,
			Cooldown: time.Hour,
			MaxDrip:  1_000_000,
		},
		API: API{
			ListenAddr:     ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		P2P: P2P{
			Enabled:    false,
			ListenAddr: "/ip4/0.0.0.0/tcp/9000",
		},
		Signing: Signing{
			ChainID: big.NewInt(1337),
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and the
// environment. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("ADMIN_ADDRESS"); v != "" && common.IsHexAddress(v) {
		cfg.Node.Admin = common.HexToAddress(v)
	}

	if v := os.Getenv("MAKER_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Fees.MakerBps = bps
		}
	}
	if v := os.Getenv("TAKER_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Fees.TakerBps = bps
		}
	}

	if v := os.Getenv("FAUCET_ENABLED"); v != "" {
		cfg.Faucet.Enabled = v == "true"
	}
	if v := os.Getenv("FAUCET_COOLDOWN_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Faucet.Cooldown = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("FAUCET_MAX_DRIP"); v != "" {
		if amt, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Faucet.MaxDrip = amt
		}
	}

	if v := os.Getenv("API_LISTEN_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("API_ALLOWED_ORIGINS"); v != "" {
		cfg.API.AllowedOrigins = strings.Split(v, ",")
	}

	if v := os.Getenv("P2P_ENABLED"); v != "" {
		cfg.P2P.Enabled = v == "true"
	}
	if v := os.Getenv("P2P_LISTEN_ADDR"); v != "" {
		cfg.P2P.ListenAddr = v
	}
	if v := os.Getenv("P2P_BOOTSTRAP"); v != "" {
		cfg.P2P.Bootstrap = strings.Split(v, ",")
	}

	if v := os.Getenv("SIGNING_CHAIN_ID"); v != "" {
		if id, ok := new(big.Int).SetString(v, 10); ok {
			cfg.Signing.ChainID = id
		}
	}

	return cfg
}
