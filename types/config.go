package types

import (
	"errors"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"nanocall.com/ffd/logger"
	"nanocall.com/ffd/utils"
)

const (
	// pipeline type
	BasecallPipeline = "basecall"

	// features
	ModCallsFeature   = "mod_calls"
	CandidatesFeature = "candidate_scoring"
)

type RequestParams struct {
	AllPaths  bool `yaml:"all_paths" json:"all_paths"`
	Calibrate bool `yaml:"calibrate" json:"calibrate"`
}

func (rParams RequestParams) GetHashCode() uint64 {
	var b [2]byte
	if rParams.AllPaths {
		b[0] = 1
	}
	if rParams.Calibrate {
		b[1] = 1
	}
	return utils.HashBytes(b[:])
}

type BasecallConfig struct {
	ModelMetadata    string `yaml:"model_metadata" json:"model_metadata"`
	CalibrationTable string `yaml:"calibration_table" json:"calibration_table"`
	QualityOffset    int    `yaml:"quality_offset" json:"quality_offset"`
}

type ParamsConfig struct {
	Basecall BasecallConfig `yaml:"BASECALL" json:"basecall"`
}

type Configuration struct {
	Name          string        `json:"name"`
	FilePath      string        `json:"file_path"`
	RequestParams RequestParams `yaml:"request_params" json:"request_params"`
	Params        ParamsConfig  `yaml:"params" json:"params"`
	Pipeline      string        `yaml:"pipeline" json:"pipeline"`
	Features      []string      `yaml:"features" json:"features"`
}

func (cfg Configuration) CheckFeature(featureName string) bool {
	for _, feat := range cfg.Features {
		if feat == featureName {
			return true
		}
	}

	return false
}

func LoadConfigurations(dirPath string) ([]Configuration, error) {
	ffLogger := logger.NewLogger("LoadConfigurations")

	files, err := ioutil.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	configChan := make(chan Configuration, len(files))
	for _, f := range files {
		// Skip dirs and non-yaml files
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}

		wg.Add(1)
		go func(file os.FileInfo) {
			defer wg.Done()
			cfg := Configuration{
				Name:     strings.Split(file.Name(), ".yaml")[0],
				FilePath: path.Join(dirPath, file.Name()),
			}
			buf, err := ioutil.ReadFile(cfg.FilePath)
			if err != nil {
				ffLogger.Err(err)
				return
			}
			if err := yaml.Unmarshal(buf, &cfg); err != nil {
				ffLogger.Err(err)
				return
			}

			if cfg.Pipeline != BasecallPipeline {
				ffLogger.Err(errors.New("wrong pipeline type"))
				return
			}

			configChan <- cfg
		}(f)
	}

	go func() {
		wg.Wait()
		close(configChan)
	}()

	configs := make([]Configuration, 0, len(configChan))
	for cfg := range configChan {
		configs = append(configs, cfg)
	}
	return configs, nil
}
