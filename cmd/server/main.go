package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/invoicer/internal/flagx"
	"github.com/dmitrijs2005/invoicer/internal/server"
	"github.com/dmitrijs2005/invoicer/internal/server/auth"
	"github.com/dmitrijs2005/invoicer/internal/server/config"
)

// tokenUser returns the user id passed with -token, if any.
func tokenUser(args []string) string {
	var userID string
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&userID, "token", "", "print an access token for this user id and exit")
	_ = fs.Parse(flagx.FilterArgs(args, []string{"-token"}))
	return userID
}

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	if userID := tokenUser(os.Args[1:]); userID != "" {
		token, err := auth.GenerateToken(userID, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(token)
		return
	}

	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
