package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"media-studio/internal/models"
)

func newTemplatesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage prompt templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := ctx.client().ListTemplates(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(templates))
			for _, t := range templates {
				rows = append(rows, []string{strconv.FormatInt(t.ID, 10), t.Name, t.Description, t.UserTemplateText})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Description", "Text"}, rows,
				[]columnAlignment{alignRight}))
			return nil
		},
	})

	var name, description string
	create := &cobra.Command{
		Use:   "create <text>",
		Short: "Create a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ctx.client().CreateTemplate(cmd.Context(), models.Template{
				Name:             name,
				Description:      description,
				UserTemplateText: args[0],
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %d created\n", t.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "Template name")
	create.Flags().StringVar(&description, "description", "", "Template description")
	_ = create.MarkFlagRequired("name")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid template id %q", args[0])
			}
			if err := ctx.client().DeleteTemplate(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %d deleted\n", id)
			return nil
		},
	})
	return cmd
}

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage source images",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List uploaded assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			assets, err := ctx.client().ListAssets(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(assets))
			for _, a := range assets {
				rows = append(rows, []string{a.Name, a.Type, formatBytes(a.Size), a.URI})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Name", "Type", "Size", "URI"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a source image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			asset, err := ctx.client().UploadAsset(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as %s\n", asset.Name, asset.URI)
			return nil
		},
	})
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
