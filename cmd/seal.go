/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mautops/persuratan-gin/internal/config"
	"github.com/mautops/persuratan-gin/internal/container"
	"github.com/mautops/persuratan-gin/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const cliActor = "system-cli"

// sealCmd represents the seal command
var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Inspect sealed document artifacts",
}

// sealExportCmd 导出封存文件
var sealExportCmd = &cobra.Command{
	Use:   "export <hash>",
	Short: "Export the sealed artifact of a document",
	Long: `Export the sealed PDF artifact of a document to a file.
The stored artifact is verified against its recorded digest before writing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctr, err := newCLIContainer(cmd)
		if err != nil {
			return err
		}
		defer ctr.Close()

		data, err := ctr.DocumentService().Artifact(cmd.Context(), cliActor, args[0])
		if err != nil {
			return fmt.Errorf("failed to load artifact: %w", err)
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = args[0] + ".pdf"
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return fmt.Errorf("failed to write artifact: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\n", output, utils.Digest(data), len(data))
		return nil
	},
}

// sealVerifyCmd 校验封存文件摘要
var sealVerifyCmd = &cobra.Command{
	Use:   "verify <hash>...",
	Short: "Verify sealed artifacts against their recorded digests",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctr, err := newCLIContainer(cmd)
		if err != nil {
			return err
		}
		defer ctr.Close()

		failed := 0
		for _, hash := range args {
			doc, err := ctr.Manager().Documents().FindByHash(cmd.Context(), hash)
			if err == nil {
				_, err = ctr.Sealer().Load(cmd.Context(), doc)
			}
			if err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tFAIL\t%v\n", hash, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tOK\t%s\n", hash, doc.Artifact.Digest)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d artifacts failed verification", failed, len(args))
		}
		return nil
	},
}

// newCLIContainer 为命令行工具创建容器
func newCLIContainer(cmd *cobra.Command) (*container.Container, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return container.NewContainer(cmd.Context(), cfg, logger)
}

func init() {
	rootCmd.AddCommand(sealCmd)
	sealCmd.AddCommand(sealExportCmd)
	sealCmd.AddCommand(sealVerifyCmd)

	sealExportCmd.Flags().StringP("output", "o", "", "Output file (default: <hash>.pdf)")
}
