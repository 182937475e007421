package configure

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/kr/pretty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type ServerCfg struct {
	Level             string        `mapstructure:"level"`
	ConfigFile        string        `mapstructure:"config_file"`
	ListenerNetwork   string        `mapstructure:"listener_network"`
	ListenerAddress   string        `mapstructure:"listener_address"`
	RoomIdleTimeout   time.Duration `mapstructure:"room_idle_timeout"`
	RoomSweepInterval time.Duration `mapstructure:"room_sweep_interval"`
	SessionSendBuffer int           `mapstructure:"session_send_buffer"`
	ExitCode          int           `mapstructure:"exit_code"`
}

// default config
var defaultConf = ServerCfg{
	ConfigFile: "config.yaml",
}

var Config = viper.New()

func initLog() {
	if l, err := log.ParseLevel(Config.GetString("level")); err == nil {
		log.SetLevel(l)
	}
	log.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		FieldsOrder: []string{"component", "category"},
	})
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

func init() {
	// Default config
	b, _ := json.Marshal(defaultConf)
	defaultConfig := bytes.NewReader(b)
	viper.SetConfigType("json")
	checkErr(viper.ReadConfig(defaultConfig))
	checkErr(Config.MergeConfigMap(viper.AllSettings()))

	// Flags
	pflag.String("config_file", "config.yaml", "configure filename")
	pflag.String("level", "info", "Log level")
	pflag.String("listener_network", "tcp", "Network for the listener, tcp or unix.")
	pflag.String("listener_address", ":62641", "Bind address for the listener.")
	pflag.Duration("room_idle_timeout", 30*time.Minute, "How long an empty room survives before it is removed.")
	pflag.Duration("room_sweep_interval", time.Minute, "How often empty rooms are swept.")
	pflag.Int("session_send_buffer", 32, "Outbound message queue size per connection.")
	pflag.Int("exit_code", 0, "Status code for successful and graceful shutdown, [0-125].")
	// Tolerate flags owned by other parsers, e.g. -test.* in test binaries.
	pflag.CommandLine.ParseErrorsWhitelist.UnknownFlags = true
	pflag.Parse()
	checkErr(Config.BindPFlags(pflag.CommandLine))

	// File
	Config.SetConfigFile(Config.GetString("config_file"))
	Config.AddConfigPath(".")
	err := Config.ReadInConfig()
	if err != nil {
		log.Warning(err)
		log.Info("Using default config")
	} else {
		checkErr(Config.MergeInConfig())
	}

	// Environment
	replacer := strings.NewReplacer(".", "_")
	Config.SetEnvKeyReplacer(replacer)
	Config.AllowEmptyEnv(true)
	Config.AutomaticEnv()

	// Log
	initLog()

	// Print final config
	c := ServerCfg{}
	checkErr(Config.Unmarshal(&c))
	log.Debugf("Current configurations: \n%# v", pretty.Formatter(c))
}
