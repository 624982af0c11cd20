package excel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Style holds the presentation settings of exported workbooks
type Style struct {
	HeaderFill     string   `yaml:"header_fill"`
	HeaderFont     string   `yaml:"header_font"`
	BorderColor    string   `yaml:"border_color"`
	ZebraFill      string   `yaml:"zebra_fill"` // empty disables striping
	CurrencyFormat string   `yaml:"currency_format"`
	MaxColWidth    float64  `yaml:"max_col_width"`
	MoneyColumns   []string `yaml:"money_columns"`
}

// DefaultStyle returns the portal's export look: dark red header with
// white bold text, thin borders and rupiah currency columns.
func DefaultStyle() Style {
	return Style{
		HeaderFill:     "5A0000",
		HeaderFont:     "FFFFFF",
		BorderColor:    "000000",
		CurrencyFormat: `"Rp "#,##0`,
		MaxColWidth:    60,
		MoneyColumns:   []string{"nilai_aset", "tunai", "jumlah_modal", "jumlah_modal__rp_"},
	}
}

// LoadStyle reads a YAML style file over the defaults. An empty path
// returns the defaults.
func LoadStyle(path string) (Style, error) {
	style := DefaultStyle()
	if path == "" {
		return style, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return style, fmt.Errorf("failed to read style file: %w", err)
	}
	if err := yaml.Unmarshal(data, &style); err != nil {
		return style, fmt.Errorf("failed to parse style file: %w", err)
	}
	return style, nil
}
