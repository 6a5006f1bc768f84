package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSatisfies_RejectsIncompleteCandidates(t *testing.T) {
	configs := []Config{
		{},
		{Filename: ".*"},
		{Filename: ".*\\.pdf$", MinSize: "1000"},
		{MimeType: "application/"},
		{MinSize: "1", MaxSize: "10G"},
	}

	candidates := []struct {
		name     string
		filename string
		mimeType string
		size     int64
	}{
		{"empty filename", "", "application/pdf", 5000},
		{"empty mime type", "a.pdf", "", 5000},
		{"zero size", "a.pdf", "application/pdf", 0},
		{"negative size", "a.pdf", "application/pdf", -1},
		{"multipart type", "a.pdf", "multipart/mixed", 5000},
		{"multipart upper case", "a.pdf", "MULTIPART/related", 5000},
	}

	for _, cfg := range configs {
		f, err := New(cfg)
		require.NoError(t, err)
		for _, c := range candidates {
			t.Run(c.name, func(t *testing.T) {
				assert.False(t, f.Satisfies(c.filename, c.mimeType, c.size), "config %+v", cfg)
			})
		}
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		filename string
		mimeType string
		size     int64
		want     bool
	}{
		{
			name:     "defaults match everything",
			filename: "photo.jpg",
			mimeType: "image/jpeg",
			size:     1,
			want:     true,
		},
		{
			name:     "filename must match fully",
			cfg:      Config{Filename: "pdf"},
			filename: "a.pdf",
			mimeType: "application/pdf",
			size:     10,
			want:     false,
		},
		{
			name:     "filename suffix pattern",
			cfg:      Config{Filename: ".*\\.pdf$"},
			filename: "report.pdf",
			mimeType: "application/pdf",
			size:     10,
			want:     true,
		},
		{
			name:     "filename with newline",
			cfg:      Config{Filename: ".*\\.pdf"},
			filename: "line\nbreak.pdf",
			mimeType: "application/pdf",
			size:     10,
			want:     true,
		},
		{
			name:     "mime type anchored at start",
			cfg:      Config{MimeType: "image/"},
			filename: "a.png",
			mimeType: "image/png",
			size:     10,
			want:     true,
		},
		{
			name:     "mime type not matched in the middle",
			cfg:      Config{MimeType: "png"},
			filename: "a.png",
			mimeType: "image/png",
			size:     10,
			want:     false,
		},
		{
			name:     "mime type alternation",
			cfg:      Config{MimeType: "image/|application/pdf"},
			filename: "a.pdf",
			mimeType: "application/pdf",
			size:     10,
			want:     true,
		},
		{
			name:     "below min size",
			cfg:      Config{MinSize: "1000"},
			filename: "a.pdf",
			mimeType: "application/pdf",
			size:     500,
			want:     false,
		},
		{
			name:     "min size inclusive",
			cfg:      Config{MinSize: "1k"},
			filename: "a.pdf",
			mimeType: "application/pdf",
			size:     1000,
			want:     true,
		},
		{
			name:     "max size inclusive",
			cfg:      Config{MaxSize: "1k"},
			filename: "a.pdf",
			mimeType: "application/pdf",
			size:     1000,
			want:     true,
		},
		{
			name:     "above max size",
			cfg:      Config{MaxSize: "1k"},
			filename: "a.pdf",
			mimeType: "application/pdf",
			size:     1001,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Satisfies(tt.filename, tt.mimeType, tt.size))
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"min greater than max", Config{MinSize: "2M", MaxSize: "1M"}},
		{"unparsable min size", Config{MinSize: "lots"}},
		{"negative max size", Config{MaxSize: "-5"}},
		{"broken filename pattern", Config{Filename: "(["}},
		{"broken mime pattern", Config{MimeType: "image/("}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestNew_OnlyOneBound(t *testing.T) {
	f, err := New(Config{MinSize: "5M"})
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), f.MinSize())
	assert.Equal(t, int64(0), f.MaxSize())
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"1500", 1500},
		{"100B", 100},
		{"500k", 500_000},
		{"1.5M", 1_500_000},
		{"2MB", 2_000_000},
		{"3G", 3_000_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "unbounded", FormatSize(0))
	assert.Equal(t, "5.0 MB", FormatSize(5_000_000))
}
