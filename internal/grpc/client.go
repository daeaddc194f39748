package grpc

import (
	"context"

	"google.golang.org/grpc"

	"redstring/pkg/models"
)

// Client calls the progress service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) SaveProgress(ctx context.Context, in *models.ProgressWrite) (*models.ReadingProgress, error) {
	out := new(models.ReadingProgress)
	if err := c.invoke(ctx, "SaveProgress", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ChapterProgress(ctx context.Context, in *ChapterProgressRequest) (*models.ChapterProgress, error) {
	out := new(models.ChapterProgress)
	if err := c.invoke(ctx, "ChapterProgress", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LastRead(ctx context.Context, in *LastReadRequest) (*LastReadResponse, error) {
	out := new(LastReadResponse)
	if err := c.invoke(ctx, "LastRead", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, grpc.CallContentSubtype(codecName))
}
