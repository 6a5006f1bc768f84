package pathsafe

import (
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestVerbatim(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"unix separator", "../../etc/passwd", ".._.._etc_passwd"},
		{"windows separator", `..\boot.ini`, `.._boot.ini`},
		{"nul byte", "a\x00b.txt", "a_b.txt"},
		{"unicode kept", "Zażółć gęślą.txt", "Zażółć gęślą.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verbatim(tt.in, File))
		})
	}
}

func TestConservative(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind Kind
		want string
	}{
		{"keeps unicode letters", "Zażółć.txt", File, "Zażółć.txt"},
		{"collapses runs", "a<>:|?*b.txt", File, "a_b.txt"},
		{"strips trailing dots and spaces", "name. . ", Dir, "name"},
		{"composes decomposed accents", "Cafe\u0301.txt", File, "Caf\u00e9.txt"},
		{"dot dot becomes underscore", "..", Dir, "_"},
		{"truncates base and extension independently", strings.Repeat("a", 80) + "." + strings.Repeat("b", 20), File,
			strings.Repeat("a", MaxNameLength) + "." + strings.Repeat("b", MaxExtLength-1)},
		{"truncates directory as a whole", strings.Repeat("ę", 80), Dir, strings.Repeat("ę", MaxDirLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Conservative(tt.in, tt.kind))
		})
	}
}

func TestASCIIOnly(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind Kind
		want string
	}{
		{"folds diacritics", "Zażółć.txt", File, "Zazo_c.txt"},
		{"non latin", "日本語.pdf", File, "_.pdf"},
		{"emoji in directory", "2024.01.02 10_00_00 Hi 🎉 there", Dir, "2024.01.02 10_00_00 Hi _ there"},
		{"only symbols", "***", File, "_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ASCIIOnly(tt.in, tt.kind))
		})
	}
}

func assertASCIIOnlyStable(t *testing.T, in string, kind Kind) {
	t.Helper()
	once := ASCIIOnly(in, kind)
	twice := ASCIIOnly(once, kind)
	assert.Equal(t, once, twice, "input %q kind %d", in, kind)
	for _, r := range once {
		assert.Less(t, r, rune(utf8.RuneSelf), "input %q produced non-ASCII %q", in, once)
	}
}

func TestASCIIOnly_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"..",
		"...",
		"a.b.",
		"ab. ",
		"a.b .",
		".hidden",
		"archive.tar.gz",
		"x.verylongextension",
		"report.final-version-2024.",
		"a.bcdefghijklmnop. .",
		strings.Repeat("x", 48) + ".y.",
		strings.Repeat("x", 45) + "." + strings.Repeat("y", 14) + ".txt",
		"Zażółć gęślą jaźń.docx",
		"日本語のファイル名.pdf",
		"con:trol\r\nchars\t.txt",
		string([]byte{0xff, 0xfe, 'a', '.', 'b'}),
		"  leading spaces.txt  ",
	}
	for _, kind := range []Kind{File, Dir} {
		for _, in := range inputs {
			assertASCIIOnlyStable(t, in, kind)
		}
	}

	assert.Equal(t, "report.final_ver", ASCIIOnly("report.final-version-2024.", File))
}

// randomName draws names from an alphabet heavy in dots, spaces and
// characters the sanitizers rewrite.
func randomName(rng *rand.Rand) string {
	alphabet := []rune("ab.. .._-xyz09\t/\\:ąéß日€")
	n := rng.IntN(90)
	var b strings.Builder
	for range n {
		b.WriteRune(alphabet[rng.IntN(len(alphabet))])
	}
	return b.String()
}

func TestASCIIOnly_IdempotentGenerated(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 20000 {
		in := randomName(rng)
		for _, kind := range []Kind{File, Dir} {
			once := ASCIIOnly(in, kind)
			if twice := ASCIIOnly(once, kind); twice != once {
				t.Fatalf("ASCIIOnly(%q, %d) = %q, applied again = %q", in, kind, once, twice)
			}
		}
	}
}

func FuzzASCIIOnly(f *testing.F) {
	for _, seed := range []string{"", "report.final-version-2024.", "a.b.c.", "日本語.pdf", ". ."} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		assertASCIIOnlyStable(t, in, File)
		assertASCIIOnlyStable(t, in, Dir)
	})
}

func TestSplitExt(t *testing.T) {
	tests := []struct {
		in, base, ext string
	}{
		{"a.pdf", "a", ".pdf"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{".bashrc", ".bashrc", ""},
		{"noext", "noext", ""},
		{"trailing.", "trailing", "."},
	}
	for _, tt := range tests {
		base, ext := splitExt(tt.in)
		assert.Equal(t, tt.base, base, tt.in)
		assert.Equal(t, tt.ext, ext, tt.in)
	}
}
