package styles

import "testing"

func TestThemeByName(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"", "default", true},
		{"default", "default", true},
		{" High-Contrast ", "high-contrast", true},
		{"solarized", "default", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			theme, ok := ThemeByName(tt.name)
			if theme.Name != tt.want || ok != tt.wantOK {
				t.Fatalf("ThemeByName(%q) = %q, %v; want %q, %v", tt.name, theme.Name, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBuildStylesKeepsTheme(t *testing.T) {
	s := BuildStyles(HighContrastTheme)
	if s.Theme.Name != "high-contrast" {
		t.Fatalf("theme = %q", s.Theme.Name)
	}
	if s.Title.GetBold() != true {
		t.Fatal("title should be bold")
	}
}
