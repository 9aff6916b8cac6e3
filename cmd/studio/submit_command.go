package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"media-studio/internal/client"
	"media-studio/internal/models"
	"media-studio/internal/studio"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		asset      string
		templateID string
		text       string
		music      bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Request a video from an asset and a template",
		Long: "Submit creates one generation job. --asset takes a storage URI or the name of an uploaded asset;\n" +
			"the prompt comes from --template (id or name) or --text.",
		RunE: func(cmd *cobra.Command, args []string) error {
			api := ctx.client()
			req, err := buildGenerationRequest(cmd.Context(), api, asset, templateID, text, music)
			if err != nil {
				return err
			}

			gw := studio.NewGateway(api, ctx.log())
			handle, err := gw.Submit(cmd.Context(), req)
			if err != nil {
				var verr *studio.ValidationError
				if errors.As(err, &verr) {
					return fmt.Errorf("cannot submit: %w", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job queued: %s\n", handle.ShortID())
			return nil
		},
	}
	cmd.Flags().StringVar(&asset, "asset", "", "Source image URI or uploaded asset name")
	cmd.Flags().StringVar(&templateID, "template", "", "Template id or name")
	cmd.Flags().StringVar(&text, "text", "", "Template text, used instead of --template")
	cmd.Flags().BoolVar(&music, "music", false, "Also generate a background music prompt")
	return cmd
}

// buildGenerationRequest resolves asset and template shorthands against the
// catalog. Missing values are passed through empty so the gateway reports them.
func buildGenerationRequest(ctx context.Context, api *client.Client, asset, template, text string, music bool) (models.GenerationRequest, error) {
	req := models.GenerationRequest{AssetRef: strings.TrimSpace(asset), TemplateText: text, IncludeMusic: music}

	needAsset := req.AssetRef != "" && !strings.Contains(req.AssetRef, "://")
	needTemplate := strings.TrimSpace(text) == "" && strings.TrimSpace(template) != ""
	if !needAsset && !needTemplate {
		return req, nil
	}

	catalog, err := api.LoadCatalog(ctx)
	if err != nil {
		return req, err
	}
	if needAsset {
		uri, ok := findAsset(catalog.Assets, req.AssetRef)
		if !ok {
			return req, fmt.Errorf("asset %q not found; run `studio assets list`", req.AssetRef)
		}
		req.AssetRef = uri
	}
	if needTemplate {
		t, ok := findTemplate(catalog.Templates, template)
		if !ok {
			return req, fmt.Errorf("template %q not found; run `studio templates list`", template)
		}
		req.TemplateText = t.UserTemplateText
	}
	return req, nil
}

func findAsset(assets []models.Asset, ref string) (string, bool) {
	for _, a := range assets {
		if a.Name == ref || a.ID == ref {
			return a.URI, true
		}
	}
	return "", false
}

func findTemplate(templates []models.Template, ref string) (models.Template, bool) {
	ref = strings.TrimSpace(ref)
	id, idErr := strconv.ParseInt(ref, 10, 64)
	for _, t := range templates {
		if (idErr == nil && t.ID == id) || strings.EqualFold(t.Name, ref) {
			return t, true
		}
	}
	return models.Template{}, false
}
