package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"signalbridge/cmd/bridge"
	"signalbridge/cmd/inspect"
	"signalbridge/src/database"
	"signalbridge/src/interpreter"
	"signalbridge/src/model"
	"signalbridge/src/repository"
)

var Version string

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		_, _ = fmt.Fprintln(os.Stderr, "failed to load .env:", err)
	}
	SetupLogger()

	app := cli.NewApp()
	app.Name = "signalbridge"
	app.Usage = "Telegram signal to MT5 trade bridge"
	app.Version = Version

	app.Commands = []cli.Command{
		runCMD,
		parseCMD,
		tradesCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetupLogger applies LOG_LEVEL and LOG_FORMAT.
func SetupLogger() {
	config := database.GetConfig()

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(config.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

var (
	runCMD = cli.Command{
		Name:        "run",
		Usage:       "run the signal bridge",
		Action:      runAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Listen for channel messages, manage trades and reconcile with the venue`,
	}
	parseCMD = cli.Command{
		Name:        "parse",
		Usage:       "interpret a message and print the signal",
		Action:      parseAction,
		ArgsUsage:   "[message text, or stdin]",
		Flags:       []cli.Flag{},
		Description: `Run the interpreter on one message without trading`,
	}
	tradesCMD = cli.Command{
		Name:      "trades",
		Usage:     "list persisted trades",
		Action:    tradesAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "status", Usage: "filter by status, e.g. active"},
			cli.StringFlag{Name: "symbol", Usage: "filter by symbol, e.g. XAUUSD"},
			cli.IntFlag{Name: "limit", Usage: "maximum rows (default INSPECT_TRADES_LIMIT)"},
		},
		Description: `List trades from the read-only database, newest first`,
	}
)

func runAction(_ *cli.Context) error {

	logrus.Info("Starting signal bridge CMD")

	b := &bridge.Bridge{Log: logrus.WithField("cmd", "run")}
	err := b.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func parseAction(c *cli.Context) error {
	config := inspect.GetConfig()

	text := strings.Join(c.Args(), " ")
	if text == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		text = string(raw)
	}

	vocab, err := interpreter.LoadVocabularyFile(config.VocabularyFile)
	if err != nil {
		return err
	}

	p := &inspect.Parse{
		Log:         logrus.WithField("cmd", "parse"),
		Out:         os.Stdout,
		Interpreter: interpreter.New(vocab),
	}
	return p.Run(text)
}

func tradesAction(c *cli.Context) error {
	config := inspect.GetConfig()

	if err := database.InitReadOnlyDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to read-only database")
		return err
	}

	options := repository.TradeSearchOptions{Limit: config.TradesLimit}
	if c.Int("limit") > 0 {
		options.Limit = c.Int("limit")
	}
	if s := c.String("status"); s != "" {
		status := model.TradeStatus(strings.ToLower(s))
		options.Status = &status
	}
	if s := c.String("symbol"); s != "" {
		symbol := strings.ToUpper(s)
		options.Symbol = &symbol
	}

	t := &inspect.Trades{
		Log: logrus.WithField("cmd", "trades"),
		DB:  database.ReadOnlyDB,
		Out: os.Stdout,
	}
	return t.Run(context.Background(), options)
}
