// gan_normal trains a GAN with a single hidden layer in each network on a mixture of normal
// distributions and writes the per step discriminator curve to model/train-data.json.
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

	fs := flag.NewFlagSet("gan_normal", flag.ExitOnError)
	flags := gan.AddFlags(fs, false)
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Parse(os.Args[1:])
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}
	opts := flags.Options(true)
	opts.Log = log
	_, err := gan.Run(opts)
	nnet.CheckErr(err)
}
