package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
)

func cmdCorrelate() *cli.Command {
	var sessionA string
	var sessionB string
	var topKPerSession int
	var pipe pipeline

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-a",
			Usage:       "First session to correlate (required)",
			Required:    true,
			Destination: &sessionA,
		},
		&cli.StringFlag{
			Name:        "session-b",
			Usage:       "Second session to correlate (required)",
			Required:    true,
			Destination: &sessionB,
		},
		&cli.IntFlag{
			Name:        "top-k-per-session",
			Usage:       "Newest chunks per session to compare (0 uses the policy value)",
			Destination: &topKPerSession,
		},
	}
	flags = append(flags, pipe.Flags()...)

	return &cli.Command{
		Name:  "correlate",
		Usage: "Find cross-session relationships between two research sessions",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := pipe.configure(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			out, err := rt.usecases.Correlate.CorrelateSessions(ctx,
				model.SessionID(sessionA), model.SessionID(sessionB), topKPerSession)
			if err != nil {
				return err
			}

			resp := correlateResponse{
				SessionA:    string(out.SessionA),
				SessionB:    string(out.SessionB),
				ChunkCountA: out.ChunkCountA,
				ChunkCountB: out.ChunkCountB,
				Edges:       make([]correlationEdge, 0, len(out.Edges)),
			}
			for _, edge := range out.Edges {
				resp.Edges = append(resp.Edges, correlationEdge{
					SourceChunkID: string(edge.SourceChunkID),
					TargetChunkID: string(edge.TargetChunkID),
					RelationType:  string(edge.RelationType),
					Confidence:    edge.Confidence,
				})
			}
			return printJSON(resp)
		},
	}
}

type correlateResponse struct {
	SessionA    string            `json:"sessionA"`
	SessionB    string            `json:"sessionB"`
	ChunkCountA int               `json:"chunkCountA"`
	ChunkCountB int               `json:"chunkCountB"`
	Edges       []correlationEdge `json:"edges"`
}

type correlationEdge struct {
	SourceChunkID string  `json:"sourceChunkId"`
	TargetChunkID string  `json:"targetChunkId"`
	RelationType  string  `json:"relationType"`
	Confidence    float64 `json:"confidence"`
}
