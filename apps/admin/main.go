package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/user"
	emailsvc "github.com/Mabu007/czane-beauty-academy/services/email"
	logsvc "github.com/Mabu007/czane-beauty-academy/services/logger"
	"github.com/Mabu007/czane-beauty-academy/storage/database"
	"github.com/Mabu007/czane-beauty-academy/storage/repos"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	store, err := database.Open(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer store.Close()

	cli := commandLine{
		usrSvc: user.NewService(
			repos.NewUserRepository(store, logger),
			emailsvc.NewConsoleService(conf, logger),
			conf,
			logger,
		),
	}
	if conf.Database.Engine == core.EnginePostgres {
		db, err := database.OpenPostgres(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening postgres: %v", err), err)
		}
		defer db.Close()
		cli.db = db.DB
	}

	if err = cli.run(os.Args[1:]); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}
