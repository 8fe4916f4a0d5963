package assembler

import (
	"strings"
	"testing"

	"siteforge/pkg/models"
)

func TestRenderHTML_IsValidStandaloneDocument(t *testing.T) {
	project := &models.Project{
		BusinessName: "Acme Studio",
		WebsiteType:  "portfolio",
		Prompt:       "A portfolio for a design studio",
	}

	html := RenderHTML(project)

	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Error("document must start with <!DOCTYPE html>")
	}
	if !strings.Contains(html, `<html lang="en">`) {
		t.Error("document must declare <html lang=\"en\">")
	}
	if !strings.Contains(strings.TrimSpace(html), "</html>") {
		t.Error("document must close with </html>")
	}
	if !strings.Contains(html, "<style>") {
		t.Error("stylesheet must be embedded inline in a <style> block")
	}
	if !strings.Contains(html, "Acme Studio") {
		t.Error("business name must appear in the document")
	}
	if !strings.Contains(html, "A portfolio for a design studio") {
		t.Error("prompt text must appear in the document")
	}
}

func TestRenderHTML_Idempotent(t *testing.T) {
	project := &models.Project{BusinessName: "Twice Rendered", WebsiteType: "saas", Prompt: "repeatable"}

	first := RenderHTML(project)
	second := RenderHTML(project)
	if first != second {
		t.Error("RenderHTML must produce byte-identical output for the same project")
	}

	if RenderCSS(project) != RenderCSS(project) {
		t.Error("RenderCSS must produce byte-identical output for the same project")
	}
}

func TestRenderHTML_AmpersandPreservedVerbatim(t *testing.T) {
	project := &models.Project{BusinessName: "Test & Co", WebsiteType: "business"}

	html := RenderHTML(project)
	if !strings.Contains(html, "Test & Co") {
		t.Error("ampersand in business name must be preserved, not entity-escaped")
	}
	if strings.Contains(html, "Test &amp; Co") {
		t.Error("business name must not be entity-escaped")
	}
}

func TestRenderCSS_SameForEveryWebsiteType(t *testing.T) {
	base := RenderCSS(&models.Project{WebsiteType: "portfolio"})
	for _, wt := range WebsiteTypes {
		if got := RenderCSS(&models.Project{WebsiteType: wt}); got != base {
			t.Errorf("CSS for type %q differs from baseline", wt)
		}
	}
}

func TestHeroTagline_FallsBackToGenericBusinessCopy(t *testing.T) {
	tests := []struct {
		websiteType string
		want        string
	}{
		{"restaurant", "Fresh ingredients, unforgettable flavors"},
		{"", "Welcome to our business"},
		{"business", "Welcome to our business"},
		{"spaceship", "Welcome to our business"},
	}

	for _, tt := range tests {
		html := RenderHTML(&models.Project{BusinessName: "X", WebsiteType: tt.websiteType})
		if !strings.Contains(html, tt.want) {
			t.Errorf("type %q: expected tagline %q in output", tt.websiteType, tt.want)
		}
	}
}

func TestIsValidWebsiteType(t *testing.T) {
	for _, wt := range []string{"portfolio", "saas", "restaurant", "ecommerce", "blog", "business"} {
		if !IsValidWebsiteType(wt) {
			t.Errorf("%q should be allow-listed", wt)
		}
	}
	for _, wt := range []string{"", "Portfolio", "crypto", "saas "} {
		if IsValidWebsiteType(wt) {
			t.Errorf("%q should not be allow-listed", wt)
		}
	}
}

func TestComponents_MirrorDocumentSections(t *testing.T) {
	comps := Components(&models.Project{BusinessName: "Acme", WebsiteType: "saas"})

	want := []string{"header", "hero", "features", "footer"}
	if len(comps) != len(want) {
		t.Fatalf("expected %d components, got %d", len(want), len(comps))
	}
	for i, w := range want {
		if comps[i].Type != w {
			t.Errorf("component %d: expected %q, got %q", i, w, comps[i].Type)
		}
	}
}
