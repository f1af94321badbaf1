// Command devtoken prints an access token for local testing.
//
//	devtoken -user 7 -org 1 -type konfi
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/utils"
)

func main() {
	_ = godotenv.Load()
	user := flag.Uint64("user", 1, "user id (sub)")
	org := flag.Uint64("org", 1, "organization id")
	userType := flag.String("type", model.UserTypeKonfi, "user type: konfi or admin")
	role := flag.String("role", "", "role claim")
	ttl := flag.Int("ttl", 60, "lifetime in minutes")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	tok, err := utils.NewAccessToken(secret, model.Identity{
		UserID:         *user,
		OrganizationID: *org,
		UserType:       *userType,
		Role:           *role,
	}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
