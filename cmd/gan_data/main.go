// gan_data trains a GAN on a mixture of normal distributions. The generator_features and
// discriminator_features flags may be repeated to add hidden layers.
package main

import (
	"flag"
	"os"

	"github.com/maybellin/generative/experiment"
	"github.com/maybellin/generative/gan"
	"github.com/maybellin/generative/nnet"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	nnet.SetLogger(log)
	experiment.SetLogger(log)

	fs := flag.NewFlagSet("gan_data", flag.ExitOnError)
	flags := gan.AddFlags(fs, true)
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Parse(os.Args[1:])
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}
	opts := flags.Options(false)
	opts.Log = log
	_, err := gan.Run(opts)
	nnet.CheckErr(err)
}
