package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"pulsex/auth"
	"pulsex/domain"
)

// tokengen mints an access token for manual testing with wscat or curl.
func main() {
	_ = godotenv.Load()

	subjectID := flag.String("subject", "dev-user", "subject id to embed in the token")
	displayName := flag.String("name", "Dev User", "display name to embed in the token")
	validity := flag.Duration("validity", time.Hour, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to JWT_SECRET)")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "missing signing secret: set JWT_SECRET or pass -secret")
		os.Exit(2)
	}

	codec := auth.NewTokenCodec([]byte(*secret), *validity)
	token, err := codec.Issue(domain.Identity{SubjectID: *subjectID, DisplayName: *displayName})
	if err != nil {
		fmt.Fprintf(os.Stderr, "token generation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
