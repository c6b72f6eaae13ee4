package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/dawnzzz/rcluster/cluster"
	"github.com/dawnzzz/rcluster/config"
	"github.com/dawnzzz/rcluster/connfactory"
	"github.com/dawnzzz/rcluster/lib/keyslot"
	"github.com/dawnzzz/rcluster/logger"
	"github.com/dawnzzz/rcluster/redis"
	"github.com/dawnzzz/rcluster/redis/client"
)

var (
	configFilename string
	mode           string
	nodes          string
)

const defaultConfigFileName = "config.yaml"

const banner = `
 ________   ________   ___       ___  ___   ________   _________    _______   ________
|\   __  \ |\   ____\ |\  \     |\  \|\  \ |\   ____\ |\___   ___\ |\  ___ \ |\   __  \
\ \  \|\  \\ \  \___| \ \  \    \ \  \\\  \\ \  \___|_\|___ \  \_| \ \   __/|\ \  \|\  \
 \ \   _  _\\ \  \     \ \  \    \ \  \\\  \\ \_____  \    \ \  \   \ \  \_|/_\ \   _  _\
  \ \  \\  \|\ \  \____ \ \  \____\ \  \\\  \\|____|\  \    \ \  \   \ \  \_|\ \\ \  \\  \|
   \ \__\\ _\ \ \_______\\ \_______\ \_______\ ____\_\  \    \ \__\   \ \_______\\ \__\\ _\
    \|__|\|__| \|_______| \|_______|\|_______||\_________\    \|__|    \|_______| \|__|\|__|
                                               \|_________|

`

func main() {
	flag.StringVar(&configFilename, "f", defaultConfigFileName, "the config file")
	flag.StringVar(&mode, "mode", "shard", "routing regime: \"server\" (slot-map/MOVED-ASK) or \"shard\" (consistent-hash ring)")
	flag.StringVar(&nodes, "nodes", "127.0.0.1:6379", "comma-separated host:port list of backend nodes")
	flag.Parse()

	fmt.Print(banner)

	config.SetupConfig(configFilename)
	logger.SetupLogger()

	factory := connfactory.New()
	factory.Define("tcp", func(params redis.Parameters) (redis.Connection, error) {
		if params.Password == "" {
			params.Password = config.Properties.Password
		}
		return client.New(params, config.Properties.KeepaliveSeconds), nil
	})

	router, err := buildRouter(factory, mode)
	if err != nil {
		logger.Fatalf("build router: %v", err)
	}

	if err := addNodes(factory, router, nodes); err != nil {
		logger.Fatalf("add nodes: %v", err)
	}

	if err := router.Connect(); err != nil {
		logger.Fatalf("connect: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		logger.Info("no command given, exiting after connecting to the cluster")
		return
	}

	cmd := redis.NewCommand(strings.ToUpper(args[0]), toArgBytes(args[1:])...)
	rep, err := router.ExecuteCommand(cmd)
	if err != nil {
		logger.Fatalf("execute %s: %v", args[0], err)
	}
	fmt.Println(rep.DataString())
}

func buildRouter(factory *connfactory.Factory, mode string) (cluster.Router, error) {
	switch mode {
	case "server":
		return cluster.NewServerRouter(factory, "tcp", keyslot.DefaultTable, config.Properties.MaxRedirects), nil
	case "shard":
		return cluster.NewShardRouter(keyslot.DefaultTable), nil
	default:
		return nil, fmt.Errorf("unknown mode %q, want \"server\" or \"shard\"", mode)
	}
}

func addNodes(factory *connfactory.Factory, router cluster.Router, nodes string) error {
	for _, addr := range strings.Split(nodes, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		host, port, err := splitHostPort(addr)
		if err != nil {
			return err
		}
		params := redis.Parameters{Host: host, Port: port, Weight: config.Properties.DefaultWeight}
		conn, err := factory.Create("tcp", params)
		if err != nil {
			return err
		}
		if err := router.Add(conn); err != nil {
			return err
		}
	}
	return nil
}

func splitHostPort(addr string) (string, int, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("invalid address %q, want host:port", addr)
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return addr[:idx], port, nil
}

func toArgBytes(args []string) [][]byte {
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = []byte(a)
	}
	return out
}
