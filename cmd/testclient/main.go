package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dasmlab/polyglot/pkg/service"
)

type clientFlags struct {
	addr       string
	timeout    time.Duration
	sourceLang string
	targetLang string
	textFile   string
	text       string
	currency   string
	units      string
}

var logger = logrus.New()

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &clientFlags{}
	root := &cobra.Command{
		Use:          "testclient",
		Short:        "Exercise the Polyglot gRPC API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.addr, "addr", "localhost:50051", "gRPC server address")
	root.PersistentFlags().DurationVar(&f.timeout, "timeout", 5*time.Minute, "Request timeout")
	root.PersistentFlags().StringVar(&f.sourceLang, "source", "en", "Source language code (e.g., en, fr)")
	root.PersistentFlags().StringVar(&f.targetLang, "target", "es", "Target language code (e.g., es, hi)")

	translateCmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate --text or the contents of --file",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := f.readText()
			if err != nil {
				return err
			}
			return withClient(f, func(ctx context.Context, c *service.Client) error {
				start := time.Now()
				res, err := c.Translate(ctx, text, f.sourceLang, f.targetLang)
				if err != nil {
					return err
				}
				printResult(f.sourceLang, f.targetLang, res.Original, res.Translated)
				logger.WithField("duration_seconds", time.Since(start).Seconds()).Info("Translation completed successfully")
				return nil
			})
		},
	}
	translateCmd.Flags().StringVar(&f.text, "text", "", "Text to translate")
	translateCmd.Flags().StringVar(&f.textFile, "file", "", "Path to a text file to translate")

	localizeCmd := &cobra.Command{
		Use:   "localize",
		Short: "Translate and localize currency and units",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := f.readText()
			if err != nil {
				return err
			}
			return withClient(f, func(ctx context.Context, c *service.Client) error {
				res, err := c.Localize(ctx, text, f.sourceLang, f.targetLang, f.currency, f.units)
				if err != nil {
					return err
				}
				printResult(f.sourceLang, f.targetLang, res.Original, res.Translated)
				fmt.Printf("Currency: %s  Units: %s\n", res.Currency, res.Units)
				return nil
			})
		},
	}
	localizeCmd.Flags().StringVar(&f.text, "text", "", "Text to localize")
	localizeCmd.Flags().StringVar(&f.textFile, "file", "", "Path to a text file to localize")
	localizeCmd.Flags().StringVar(&f.currency, "currency", "", "Currency code (USD, EUR, GBP, INR, JPY)")
	localizeCmd.Flags().StringVar(&f.units, "units", "", "Unit system (metric or imperial)")

	languagesCmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported language codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(f, func(ctx context.Context, c *service.Client) error {
				langs, err := c.Languages(ctx)
				if err != nil {
					return err
				}
				fmt.Println(strings.Join(langs, " "))
				return nil
			})
		},
	}

	batchCmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Translate every line of FILE in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readLines(args[0])
			if err != nil {
				return err
			}
			return withClient(f, func(ctx context.Context, c *service.Client) error {
				out, err := c.TranslateBatch(ctx, lines, f.sourceLang, f.targetLang)
				if err != nil {
					return err
				}
				for i, t := range out {
					fmt.Printf("%d\t%s\t%s\n", i+1, lines[i], t)
				}
				return nil
			})
		},
	}

	jobCmd := &cobra.Command{
		Use:   "job ID",
		Short: "Show the status of a batch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(f, func(ctx context.Context, c *service.Client) error {
				snap, err := c.JobStatus(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s  %d/%d rows  %s\n", snap.ID, snap.Status, snap.RowsDone, snap.RowsTotal, snap.ProgressMessage)
				if snap.Error != "" {
					fmt.Println("error:", snap.Error)
				}
				return nil
			})
		},
	}

	root.AddCommand(translateCmd, localizeCmd, languagesCmd, batchCmd, jobCmd)
	return root
}

func (f *clientFlags) readText() (string, error) {
	if f.textFile != "" {
		data, err := os.ReadFile(f.textFile)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.textFile, err)
		}
		return string(data), nil
	}
	if f.text == "" {
		return "", fmt.Errorf("either --file or --text must be provided")
	}
	return f.text, nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func withClient(f *clientFlags, fn func(context.Context, *service.Client) error) error {
	logger.WithField("server", f.addr).Info("Connecting to Polyglot server...")

	conn, err := grpc.NewClient(f.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", f.addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := fn(ctx, service.NewClient(conn)); err != nil {
		logger.WithError(err).Error("Request failed")
		return err
	}
	return nil
}

func printResult(sourceLang, targetLang, original, translated string) {
	separator := strings.Repeat("=", 80)
	dashLine := strings.Repeat("-", 80)

	fmt.Println()
	fmt.Println(separator)
	fmt.Printf("Source Language: %s\nTarget Language: %s\n", sourceLang, targetLang)
	fmt.Println(dashLine)
	fmt.Println(original)
	fmt.Println(dashLine)
	fmt.Println(translated)
	fmt.Println(separator)
}
