package mocks

import (
	"context"
	"io"

	"docvault/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, key, originalName, contentType string, size int64, r io.Reader) (*model.Document, error) {
	args := m.Called(ctx, key, originalName, contentType, size, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) GetMetadata(ctx context.Context, key string) (*model.Document, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, key string) (*model.Document, io.ReadCloser, error) {
	args := m.Called(ctx, key)
	var doc *model.Document
	if args.Get(0) != nil {
		doc = args.Get(0).(*model.Document)
	}
	rc, _ := args.Get(1).(io.ReadCloser)
	return doc, rc, args.Error(2)
}

func (m *MockDocumentService) List(ctx context.Context) ([]model.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}
