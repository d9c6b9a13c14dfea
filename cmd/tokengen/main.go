// Command tokengen mints identity tokens for the jwt identity provider so the
// API can be exercised locally without an external sign-in service.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"notely-server/internal/config"
	"notely-server/pkg/jwt"
)

func main() {
	sub := flag.String("sub", "", "external subject id (required)")
	email := flag.String("email", "", "email claim (required)")
	name := flag.String("name", "", "display name claim")
	picture := flag.String("picture", "", "avatar URL claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *sub == "" || *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Identity.Provider != config.ProviderJWT {
		log.Printf("warning: IDENTITY_PROVIDER is %q, the server will not accept this token", cfg.Identity.Provider)
	}

	claims := jwt.NewClaims(*sub, jwt.Profile{Email: *email, Name: *name, Picture: *picture}, *ttl)
	claims.Issuer = cfg.Identity.JWTIssuer

	token, err := claims.Sign(cfg.Identity.JWTSecret)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
}
