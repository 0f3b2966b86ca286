//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package main

import (
	"github.com/sirupsen/logrus"

	"github.com/weaviate/segmentwriter/usecases/config"
)

const envPrefix = "SEGMENTWRITER_"

// Options represents command line options
type Options struct {
	Index      string            `long:"index" short:"i" description:"name of the index to load into" required:"true"`
	Backend    string            `long:"backend" description:"where the index lives" choice:"embedded" choice:"elasticsearch" default:"embedded"`
	DataPath   string            `long:"data-path" description:"root directory of embedded indexes"`
	Config     string            `long:"config" description:"YAML file with configuration properties"`
	Properties map[string]string `long:"property" short:"p" description:"configuration property as key:value, may be repeated"`
	Input      string            `long:"input" description:"file with one JSON document per line, stdin if empty"`
	BatchSize  int               `long:"batch-size" description:"number of works applied per batch" default:"500"`
	ForceMerge bool              `long:"force-merge" description:"merge the embedded index into a single segment when done"`

	MetricsAddr string `long:"metrics-addr" description:"address to serve prometheus metrics on, disabled if empty"`
	LogLevel    string `long:"log-level" description:"log level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	LogFormat   string `long:"log-format" description:"log format" choice:"text" choice:"json" default:"text"`
}

// propertySource gives command line properties precedence over the
// environment, which in turn overrides the configuration file.
func (o Options) propertySource() (config.PropertySource, error) {
	flagProps := config.MapSource{}
	for k, v := range o.Properties {
		flagProps[k] = v
	}
	if o.DataPath != "" {
		flagProps[config.KeyDirectoryRoot] = o.DataPath
	}

	chain := config.ChainSource{flagProps, config.FromEnv(envPrefix)}
	if o.Config != "" {
		fileProps, err := config.LoadYAMLFile(o.Config)
		if err != nil {
			return nil, err
		}
		chain = append(chain, fileProps)
	}
	return chain, nil
}

func (o Options) logger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(o.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	if o.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}
