package descriptor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type parsed struct {
	DateDeleted string `yaml:"Date deleted"`
	Email       struct {
		ID           string `yaml:"ID"`
		CopyID       string `yaml:"Copy ID"`
		Subject      string `yaml:"Subject"`
		DateReceived string `yaml:"Date received"`
	} `yaml:"Email"`
	File struct {
		Name    string `yaml:"Name"`
		SavedAs string `yaml:"Saved as"`
		Size    int64  `yaml:"Size in bytes"`
		SHA1    string `yaml:"SHA1"`
		MD5     string `yaml:"MD5"`
	} `yaml:"Attachment file"`
}

func sample() Descriptor {
	zone := time.FixedZone("", 2*60*60)
	return Descriptor{
		DeletedAt:     time.Date(2026, 10, 17, 10, 11, 12, 0, zone),
		MessageID:     "<CAF=abc@mail.gmail.com>",
		CopyMessageID: "<CAF=abc.x1.y2.1@mail.gmail.com>",
		Subject:       "Quarterly report",
		ReceivedAt:    time.Date(2026, 10, 16, 9, 0, 0, 0, zone),
		Filename:      "report.pdf",
		SavedAs:       "2026.10.16 09_00_00 Quarterly report/report.pdf",
		Size:          5000,
		SHA1:          "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed",
		MD5:           "5eb63bbbe01eeed093cb22bb8f5acdc3",
	}
}

func TestText(t *testing.T) {
	text := sample().Text()

	assert.True(t, strings.HasPrefix(text, "#\r\n# The attachment has been deleted from this email message.\r\n#\r\n"))
	assert.True(t, strings.HasSuffix(text, "\r\n"))
	assert.NotContains(t, strings.ReplaceAll(text, "\r\n", ""), "\n")
	assert.Contains(t, text, "Date deleted: 2026.10.17 10:11:12 +02:00\r\n")
	assert.Contains(t, text, "    Size in bytes: 5000\r\n")
	assert.Contains(t, text, "    MD5:  5eb63bbbe01eeed093cb22bb8f5acdc3\r\n")

	var got parsed
	require.NoError(t, yaml.Unmarshal([]byte(text), &got))
	assert.Equal(t, "<CAF=abc@mail.gmail.com>", got.Email.ID)
	assert.Equal(t, "<CAF=abc.x1.y2.1@mail.gmail.com>", got.Email.CopyID)
	assert.Equal(t, "Quarterly report", got.Email.Subject)
	assert.Equal(t, "2026.10.16 09:00:00 +02:00", got.Email.DateReceived)
	assert.Equal(t, "report.pdf", got.File.Name)
	assert.Equal(t, int64(5000), got.File.Size)
	assert.Equal(t, "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed", got.File.SHA1)
}

func TestText_EscapesFreeText(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		filename string
	}{
		{"newline injection", "hi\r\nSHA1: forged", "a\nb.pdf"},
		{"quotes and backslashes", `say "hi" \o/`, `c:\evil".pdf`},
		{"tabs and bell", "tab\there\a", "x\x7f.pdf"},
		{"unicode line separator", "one\u2028two", "Zażółć.pdf"},
		{"yaml indicators", "- [a]: {b} # c", "&anchor *alias !tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sample()
			d.Subject = tt.subject
			d.Filename = tt.filename
			text := d.Text()

			lines := strings.Split(strings.TrimSuffix(text, "\r\n"), "\r\n")
			assert.Len(t, lines, 15)
			for _, l := range lines {
				assert.NotContains(t, l, "\n")
				assert.NotContains(t, l, "\r")
			}

			var got parsed
			require.NoError(t, yaml.Unmarshal([]byte(text), &got))
			assert.Equal(t, tt.subject, got.Email.Subject)
			assert.Equal(t, tt.filename, got.File.Name)
			assert.Equal(t, "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed", got.File.SHA1)
		})
	}
}

func TestText_OptionalFields(t *testing.T) {
	d := sample()
	d.CopyMessageID = ""
	d.SavedAs = ""
	d.ReceivedAt = time.Time{}
	text := d.Text()

	assert.NotContains(t, text, "Copy ID")
	assert.NotContains(t, text, "Saved as")
	assert.NotContains(t, text, "Date received")
}

func TestBuild(t *testing.T) {
	before := time.Now().Add(-time.Second)
	text := Build("a.pdf", "<id@x>", "Subject", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), 10, "s", "m")

	var got parsed
	require.NoError(t, yaml.Unmarshal([]byte(text), &got))
	deleted, err := time.Parse(TimeLayout, got.DateDeleted)
	require.NoError(t, err)
	assert.False(t, deleted.Before(before.Truncate(time.Second)))
	assert.Equal(t, "a.pdf", got.File.Name)
	assert.Equal(t, "<id@x>", got.Email.ID)
}

func TestCharset(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain ascii", "Name: \"a.pdf\"\r\n", CharsetASCII},
		{"empty", "", CharsetASCII},
		{"latin accents", "Subject: \"Café\"\r\n", CharsetUTF8},
		{"tab", "a\tb", CharsetUTF8},
		{"delete char", "a\x7fb", CharsetUTF8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Charset(tt.text))
		})
	}
}

func TestCharset_OfRenderedDescriptor(t *testing.T) {
	d := sample()
	assert.Equal(t, CharsetASCII, Charset(d.Text()))

	d.Subject = "Faktura za październik"
	assert.Equal(t, CharsetUTF8, Charset(d.Text()))

	d.Subject = "bell\a"
	assert.Equal(t, CharsetASCII, Charset(d.Text()), "control characters are escaped to ASCII")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Deleted report.pdf.yml", FileName("report.pdf"))
}
