package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/realmkit/realmkit/document"
	"github.com/realmkit/realmkit/internal/config"
	"github.com/realmkit/realmkit/internal/logging"
	"github.com/realmkit/realmkit/internal/monitoring"
	"github.com/realmkit/realmkit/membrane"
	"github.com/realmkit/realmkit/realm"
)

var (
	debug      bool
	pagePath   string
	rawInput   bool
	keepAlive  bool
	endowments []string
)

func main() {
	root := &cobra.Command{
		Use:   "realmctl",
		Short: "Create sandbox realms and evaluate scripts inside them",
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	eval := &cobra.Command{
		Use:   "eval <script>",
		Short: "Evaluate a script inside a freshly created sandbox realm",
		Args:  cobra.ExactArgs(1),
		RunE:  runEval,
	}
	eval.Flags().StringVar(&pagePath, "page", "", "HTML file to build the host document from")
	eval.Flags().BoolVar(&rawInput, "raw", false, "Skip sanitization of the host page")
	eval.Flags().BoolVar(&keepAlive, "keep-alive", false, "Preserve the container and bridge poisoned globals")
	eval.Flags().StringArrayVar(&endowments, "endow", nil, "Endowment as name=value (value parsed as JSON, falling back to string)")
	root.AddCommand(eval)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg := config.LoadOrDefault()

	var log *logging.Logger
	if debug || cfg.Logging.Development {
		log = logging.NewDevelopment()
	} else {
		log = logging.NewDefault()
	}
	defer log.Sync()

	doc, err := loadHostDocument(cfg)
	if err != nil {
		return err
	}

	host, err := realm.NewHost(doc, &realm.HostOptions{
		Logger:       log.Logger,
		MaxCallStack: cfg.Realm.MaxCallStack,
	})
	if err != nil {
		return err
	}
	defer host.Close()

	var instr realm.Instrumentation
	if cfg.Metrics.Listen != "" {
		metrics := monitoring.NewMetrics(nil)
		instr = metrics
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Listen, nil); err != nil {
				log.Warn("metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	endow, err := parseEndowments(endowments)
	if err != nil {
		return err
	}

	mem, err := realm.CreateSandboxRealm(host.Root(), &realm.Options{
		Endowments:      endow,
		KeepAlive:       keepAlive || cfg.Realm.KeepAlive,
		Instrumentation: instr,
		Logger:          log.Logger,
	})
	if err != nil {
		return err
	}

	val, err := mem.Evaluate(cmd.Context(), args[0], cfg.Realm.EvalTimeout)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	out, err := sonic.MarshalIndent(map[string]interface{}{
		"value": val.Export(),
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func loadHostDocument(cfg *config.Config) (*document.Document, error) {
	if pagePath == "" {
		return document.NewEmpty(), nil
	}
	markup, err := os.ReadFile(pagePath)
	if err != nil {
		return nil, err
	}
	if rawInput || !cfg.Realm.SanitizeInput {
		return document.ParseString(string(markup))
	}
	return document.ParseSanitizedString(string(markup))
}

func parseEndowments(pairs []string) (membrane.DescriptorMap, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	endow := make(membrane.DescriptorMap, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid endowment %q, expected name=value", pair)
		}
		var value interface{}
		if err := sonic.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		endow[name] = membrane.DataDescriptor(value)
	}
	return endow, nil
}
