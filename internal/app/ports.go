package app

import (
	"context"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

type StatusUseCase interface {
	Status(ctx context.Context, req StatusRequest) (*StatusResponse, error)
}

type MarkUseCase interface {
	Mark(ctx context.Context, req MarkRequest) error
	Cycle(ctx context.Context, key domain.EntryKey) (domain.StatusCode, error)
	Note(ctx context.Context, key domain.EntryKey, note string) error
}

type ImportUseCase interface {
	Import(ctx context.Context, raw []byte) (*ImportResult, error)
}
