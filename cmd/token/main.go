// Command token issues a bearer token for the gateway API using the
// configured auth.jwt_secret.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lk2023060901/rerank-gateway/internal/auth"
	"github.com/lk2023060901/rerank-gateway/internal/conf"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "config file path")
	subject    = flag.String("subject", "", "calling service name")
	scopes     = flag.String("scopes", auth.ScopeRerank, "comma separated scopes: rerank, cache:admin")
)

func main() {
	flag.Parse()

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if !config.Auth.Enabled() {
		log.Fatal("auth.jwt_secret is not set, API authentication is disabled")
	}

	var list []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}

	m := auth.NewJWTManager(config.Auth.JWTSecret, config.Auth.JWTIssuer,
		time.Duration(config.Auth.TokenTTL)*time.Hour)
	token, err := m.GenerateToken(*subject, list...)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}

	fmt.Println(token)
}
