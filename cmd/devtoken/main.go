// devtoken 为本地调试签发 JWT
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/d60-Lab/cafe-pos/config"
	"github.com/d60-Lab/cafe-pos/internal/api/middleware"
)

func main() {
	userID := flag.Int64("user", 1, "user id carried in the token")
	role := flag.String("role", middleware.RolePOSUser, "pos_user | admin | kitchen")
	flag.Parse()

	switch *role {
	case middleware.RolePOSUser, middleware.RoleAdmin, middleware.RoleKitchen:
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "jwt.secret is empty")
		os.Exit(1)
	}
	token, err := middleware.GenerateToken(cfg.JWT.Secret, cfg.JWT.Issuer, *userID, *role, cfg.JWT.TTL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
