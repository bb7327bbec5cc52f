// web serves a dashboard for an experiment directory.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/maybellin/generative/nnet"
	"github.com/maybellin/generative/web"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	web.SetLogger(log)
	addr := flag.String("addr", ":8080", "address to listen on")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: web [opts] <experiment_dir>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	exp, err := web.NewExperiment(flag.Arg(0))
	nnet.CheckErr(err)
	r, err := web.NewRouter(exp)
	nnet.CheckErr(err)

	log.Infof("serving %s at http://localhost%s", exp.Name(), *addr)
	nnet.CheckErr(http.ListenAndServe(*addr, r))
}
