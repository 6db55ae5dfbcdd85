package cli

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
)

func cmdIngest() *cli.Command {
	var title string
	var sessionID string
	var track string
	var author string
	var privacyLevel string
	var partiallyShareable bool
	var topics []string
	var pipe pipeline

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "title",
			Usage:       "Document title (required)",
			Required:    true,
			Destination: &title,
		},
		&cli.StringFlag{
			Name:        "session",
			Usage:       "Research session the document belongs to (required)",
			Required:    true,
			Sources:     cli.EnvVars("MNEMOSYNE_SESSION"),
			Destination: &sessionID,
		},
		&cli.StringFlag{
			Name:        "track",
			Usage:       "Governance track tag",
			Destination: &track,
		},
		&cli.StringFlag{
			Name:        "author",
			Usage:       "Author identity (pseudonymized before storage)",
			Destination: &author,
		},
		&cli.StringFlag{
			Name:        "privacy-level",
			Usage:       "Privacy tier of the document (minimal, selective, high or maximum)",
			Value:       string(types.PrivacyTierSelective),
			Destination: &privacyLevel,
		},
		&cli.BoolFlag{
			Name:        "partially-shareable",
			Usage:       "Allow redacted access one tier below the privacy level",
			Destination: &partiallyShareable,
		},
		&cli.StringSliceFlag{
			Name:        "topic",
			Usage:       "Topic tag (can be specified multiple times)",
			Destination: &topics,
		},
	}
	flags = append(flags, pipe.Flags()...)

	return &cli.Command{
		Name:      "ingest",
		Aliases:   []string{"i"},
		Usage:     "Ingest a document from a file or stdin through the pipeline",
		ArgsUsage: "[file|-]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			text, err := readDocumentText(c.Args().First())
			if err != nil {
				return err
			}

			tier, err := types.ParsePrivacyTier(privacyLevel)
			if err != nil {
				return goerr.Wrap(err, "invalid privacy level")
			}

			rt, err := pipe.configure(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			result, ingestErr := rt.usecases.Ingest.Ingest(ctx, usecase.IngestInput{
				Title:              title,
				Text:               text,
				SourceType:         types.SourceTypeUpload,
				SessionID:          model.SessionID(sessionID),
				Track:              track,
				Author:             author,
				Topics:             topics,
				PrivacyLevel:       tier,
				PartiallyShareable: partiallyShareable,
			})
			if result != nil {
				out := ingestResponse{
					ChunkCount:     result.ChunkCount,
					RejectedReason: result.RejectedReason,
				}
				if result.Document != nil {
					out.DocumentID = string(result.Document.ID)
					out.Status = string(result.Document.Status)
					out.QualityScore = result.Document.QualityScore
				}
				if err := printJSON(out); err != nil {
					return err
				}
			}
			return ingestErr
		},
	}
}

type ingestResponse struct {
	DocumentID     string  `json:"documentId,omitempty"`
	Status         string  `json:"status,omitempty"`
	QualityScore   float64 `json:"qualityScore"`
	ChunkCount     int     `json:"chunkCount"`
	RejectedReason string  `json:"rejectedReason,omitempty"`
}

// readDocumentText loads the document body from the named file, or from
// stdin when the argument is "-" or absent.
func readDocumentText(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", goerr.Wrap(err, "failed to read document from stdin")
		}
		return string(data), nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read document file", goerr.V("path", path))
	}
	return string(data), nil
}
