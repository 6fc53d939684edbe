// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net/http"

	"github.com/gitbruv/gitbruv/pkg/serve/httpserver"
	"github.com/gitbruv/gitbruv/pkg/version"
	"github.com/sirupsen/logrus"
)

type HTTPD struct {
	Config string `short:"c" name:"config" help:"Location of server config file" default:"~/config/gitbruv-httpd.toml" type:"path"`
}

func (c *HTTPD) Run(globals *Globals) error {
	sc, err := httpserver.NewServerConfig(c.Config, globals.ExpandEnv)
	if err != nil {
		logrus.Errorf("gitbruv httpd load server config error: %v", err)
		return err
	}
	srv, err := httpserver.NewServer(sc)
	if err != nil {
		logrus.Errorf("gitbruv httpd new httpd server error: %v", err)
		return err
	}
	if si, err := version.Uname(); err == nil {
		logrus.Infof("gitbruv httpd listen on %s host: %s %s %s %s", sc.Listen, si.Node, si.Name, si.Release, si.Machine)
	} else {
		logrus.Infof("gitbruv httpd listen on %s", sc.Listen)
	}
	closer := newCloser()
	go closer.listenSignal(context.Background(), srv)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Errorf("gitbruv httpd listen server error: %v", err)
		return err
	}
	<-closer.ch
	logrus.Infof("gitbruv httpd exited")
	return nil
}
