package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"media-studio/internal/client"
)

func newTrainCommand(ctx *commandContext) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "train <image>...",
		Short: "Upload images to train a custom style",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]client.TrainingFile, 0, len(args))
			for _, p := range args {
				f, err := os.Open(p)
				if err != nil {
					return err
				}
				defer f.Close()
				files = append(files, client.TrainingFile{Name: filepath.Base(p), Body: f})
			}
			run, err := ctx.client().StartTraining(cmd.Context(), model, files)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Training %s started with %d images\n", run.JobID, run.FileCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Model name")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
