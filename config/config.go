package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	jRPC "github.com/0xPolygon/cdk-rpc/rpc"
	"github.com/0xPolygon/ctc/chain"
	"github.com/0xPolygon/ctc/clock"
	"github.com/0xPolygon/ctc/log"
	"github.com/0xPolygon/ctc/queue"
	"github.com/0xPolygon/ctc/registry"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

const (
	// FlagCfg is the flag for cfg.
	FlagCfg = "cfg"
	// FlagComponents is the flag for components.
	FlagComponents = "components"
	// FlagSaveConfigPath is the flag to save the final configuration file
	FlagSaveConfigPath = "save-config-path"
	// FlagMinConfig is the flag to print only the mandatory vars on the config command
	FlagMinConfig = "min"

	EnvVarPrefix       = "CTC"
	ConfigType         = "toml"
	SaveConfigFileName = "ctc_config.toml"

	DefaultCreationFilePermissions = os.FileMode(0600)
)

/*
Config represents the configuration of the ctc node.
The file is [TOML format]

[TOML format]: https://en.wikipedia.org/wiki/TOML
*/
type Config struct {
	// Configure Log level for all the services, allow also to store the logs in a file
	Log log.Config
	// Registry holds the sequencer identity and the gas policy constants
	Registry registry.Config
	// Clock is the ambient timestamp / block height oracle
	Clock clock.Config
	// Queue is the configuration of the permissionless queue store
	Queue queue.Config
	// Chain is the configuration of the chain merger
	Chain chain.Config
	// RPC is the config for the RPC server
	RPC jRPC.Config
}

// Load loads the configuration
func Load(ctx *cli.Context) (*Config, error) {
	configFilePath := ctx.StringSlice(FlagCfg)
	filesData, err := readFiles(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading files:  Err:%w", err)
	}
	saveConfigPath := ctx.String(FlagSaveConfigPath)
	return LoadFile(filesData, saveConfigPath)
}

func readFiles(files []string) ([]FileData, error) {
	result := make([]FileData, 0)
	for _, file := range files {
		fileContent, err := readFileToString(file)
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %s. Err:%w", file, err)
		}
		fileExtension := getFileExtension(file)
		if fileExtension != ConfigType {
			fileContent, err = convertFileToToml(fileContent, fileExtension)
			if err != nil {
				return nil, fmt.Errorf("error converting file: %s from %s to TOML. Err:%w", file, fileExtension, err)
			}
		}
		result = append(result, FileData{Name: file, Content: fileContent})
	}
	return result, nil
}

func getFileExtension(fileName string) string {
	return fileName[strings.LastIndex(fileName, ".")+1:]
}

// LoadFileFromString parses an already rendered configuration
func LoadFileFromString(configFileData string, configType string) (*Config, error) {
	cfg := &Config{}
	err := loadString(cfg, configFileData, configType, true, EnvVarPrefix)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfigToString renders the final configuration as TOML
func SaveConfigToString(cfg Config) (string, error) {
	b, err := toml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LoadFile merges the default values with the given files, resolves the
// template vars and unmarshals the result
func LoadFile(files []FileData, saveConfigPath string) (*Config, error) {
	fileData := make([]FileData, 0)
	fileData = append(fileData, FileData{Name: "default_vars", Content: DefaultVars})
	fileData = append(fileData, FileData{Name: "default_values", Content: DefaultValues})
	fileData = append(fileData, files...)

	renderedCfg, err := NewRenderer(fileData, EnvVarPrefix).Render()
	if err != nil {
		return nil, err
	}
	if saveConfigPath != "" {
		fullPath := saveConfigPath + "/" + SaveConfigFileName
		err = os.WriteFile(fullPath, []byte(renderedCfg), DefaultCreationFilePermissions)
		if err != nil {
			err = fmt.Errorf("error writing config file: %s. Err: %w", fullPath, err)
			log.Error(err)
			return nil, err
		}
	}
	return LoadFileFromString(renderedCfg, ConfigType)
}

func loadString(cfg *Config, configData string, configType string,
	allowEnvVars bool, envPrefix string) error {
	v := viper.New()
	v.SetConfigType(configType)
	if allowEnvVars {
		replacer := strings.NewReplacer(".", "_")
		v.SetEnvKeyReplacer(replacer)
		v.SetEnvPrefix(envPrefix)
		v.AutomaticEnv()
	}
	err := v.ReadConfig(bytes.NewBuffer([]byte(configData)))
	if err != nil {
		return err
	}
	decodeHooks := []viper.DecoderConfigOption{
		// this allows arrays to be decoded from env var separated by ",", example: MY_VAR="value1,value2,value3"
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(), mapstructure.StringToSliceHookFunc(","))),
	}

	return v.Unmarshal(&cfg, decodeHooks...)
}
