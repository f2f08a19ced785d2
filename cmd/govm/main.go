package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/govm-project/govm/pkg/diagnostics"
	"github.com/govm-project/govm/pkg/govm"
	"github.com/govm-project/govm/pkg/provider"
	"github.com/spf13/cobra"
)

var (
	classpath string
	bootJmod  string
	verbose   bool
)

func buildBytesFor() (vmBytesFor, func(), error) {
	var chain []func(string) ([]byte, bool, error)
	var closers []func()

	if bootJmod != "" {
		p, err := provider.OpenMmapJmod(bootJmod)
		if err != nil {
			return nil, nil, fmt.Errorf("opening boot jmod %s: %w", bootJmod, err)
		}
		chain = append(chain, p.BytesFor)
		closers = append(closers, func() { p.Close() })
	}
	for _, dir := range splitClasspath(classpath) {
		chain = append(chain, provider.NewDirProvider(dir).BytesFor)
	}

	cp := provider.NewChainProvider(chain...)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return cp.BytesFor, closeAll, nil
}

// vmBytesFor avoids a direct pkg/vm import in this file just to name
// the callback type; it is structurally identical to vm.BytesFor.
type vmBytesFor = func(string) ([]byte, bool, error)

func splitClasspath(cp string) []string {
	if cp == "" {
		return nil
	}
	return strings.Split(cp, string(os.PathListSeparator))
}

func run(cmd *cobra.Command, args []string) {
	mainClass := args[0]
	mainClass = strings.TrimSuffix(mainClass, ".class")

	bytesFor, closeAll, err := buildBytesFor()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeAll()

	threshold := diagnostics.Info
	if verbose {
		threshold = diagnostics.Fine
	}
	log := diagnostics.New(threshold)

	m, err := govm.New(bytesFor, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrapping interpreter: %v\n", err)
		os.Exit(1)
	}

	code, err := m.RunMain(mainClass, args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "govm <main-class> [args...]",
		Short: "A JVM bytecode interpreter",
		Long:  "govm loads a class by its binary name and runs its main(String[]) method.",
		Args:  cobra.MinimumNArgs(1),
		Run:   run,
	}

	rootCmd.PersistentFlags().StringVarP(&classpath, "classpath", "", "", fmt.Sprintf("directories to search for classfiles, %c-separated", os.PathListSeparator))
	rootCmd.PersistentFlags().StringVar(&bootJmod, "boot-jmod", "", "path to a java.base.jmod-shaped archive backing the bootstrap classes")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable Fine-level diagnostics")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("govm 0.1.0")
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

