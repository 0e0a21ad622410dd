// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// -- Page Mock --

// MockPage mocks purge.Page.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockPage) Click(ctx context.Context, selector string) error {
	args := m.Called(ctx, selector)
	return args.Error(0)
}

func (m *MockPage) TypeText(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

func (m *MockPage) Exists(ctx context.Context, selector string) (bool, error) {
	args := m.Called(ctx, selector)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) WaitVisible(ctx context.Context, selector string) error {
	args := m.Called(ctx, selector)
	return args.Error(0)
}

func (m *MockPage) ScrollToBottom(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPage) ClickByText(ctx context.Context, tag, text string) (bool, error) {
	args := m.Called(ctx, tag, text)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) ClickJS(ctx context.Context, selector string) (bool, error) {
	args := m.Called(ctx, selector)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) NavigationMark() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}

func (m *MockPage) WaitForNavigation(ctx context.Context, mark uint64, timeout time.Duration) error {
	args := m.Called(ctx, mark, timeout)
	return args.Error(0)
}

func (m *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var png []byte
	if v := args.Get(0); v != nil {
		png = v.([]byte)
	}
	return png, args.Error(1)
}

// -- Code Source Mock --

// MockCodeSource mocks purge.CodeSource.
type MockCodeSource struct {
	mock.Mock
}

func (m *MockCodeSource) Fresh(ctx context.Context, minValidity time.Duration) (string, error) {
	args := m.Called(ctx, minValidity)
	return args.String(0), args.Error(1)
}
