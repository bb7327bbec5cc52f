// ppca fits a probabilistic PCA model to samples from independent normal distributions and writes the
// fitted distribution at each step as Mathematica code to train-data.txt.
package main

import (
	"flag"
	"os"

	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/nnet"
	"github.com/maybellin/generative/ppca"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	nnet.SetLogger(log)
	experiment.SetLogger(log)

	fs := flag.NewFlagSet("ppca", flag.ExitOnError)
	flags := ppca.AddFlags(fs)
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Parse(os.Args[1:])
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}
	opts := flags.Options()
	opts.Log = log
	_, err := ppca.Run(opts)
	nnet.CheckErr(err)
}
