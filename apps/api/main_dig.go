package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/dig"

	dig_container "github.com/trezcool/shule/apps/api/di/dig"
	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type apiParams struct {
	dig.In

	App      dig_container.AppParams
	DBLogger core.Logger `name:"dbLogger"`
	DB       io.Closer
	Schools  *school.Service
	Server   *echoapi.Server
}

func startWithDig() {
	must(dig_container.New().Invoke(func(p apiParams) {
		dig_container.Init(p.App)
		conf, logger := p.App.Conf, p.App.Logger

		defer func() {
			if err := p.DB.Close(); err != nil {
				p.DBLogger.Fatal("Failed to close", err)
			}
		}()
		defer logger.Info("Application stopped")

		// /debug/pprof is on the default mux through the net/http/pprof import, /debug/vars through expvar.
		publishVars(conf, p.Schools, logger)
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		go p.Server.Start()
		waitForShutdown(conf, p.Server, logger)
	}))
}

// publishVars exposes the build and the registration backlog under /debug/vars.
func publishVars(conf *core.Config, schools *school.Service, logger core.Logger) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("dbEngine").Set(conf.Database.Engine)
	expvar.Publish("pendingRegistrations", expvar.Func(func() interface{} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		reqs, err := schools.QueryRequests(ctx, school.StatusPending)
		if err != nil {
			logger.Warn("counting pending registrations", err)
			return -1
		}
		return len(reqs)
	}))
}

// waitForShutdown blocks until the server fails or a shutdown signal comes,
// then gives outstanding requests conf.Server.ShutdownTimeout to complete.
func waitForShutdown(conf *core.Config, server *echoapi.Server, logger core.Logger) {
	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
