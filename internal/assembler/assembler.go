// Package assembler renders the final website artifact (HTML document +
// CSS stylesheet) from project metadata. Rendering is pure template
// substitution: deterministic, side-effect free, and idempotent.
//
// Inputs are interpolated verbatim. Callers are expected to have
// stripped the literal < and > characters at the request boundary; the
// assembler performs no escaping of its own.
package assembler

import (
	"fmt"
	"strings"

	"siteforge/pkg/models"
)

// WebsiteTypes is the allow-list the validation layer and the default
// hero copy share.
var WebsiteTypes = []string{"portfolio", "saas", "restaurant", "ecommerce", "blog", "business"}

// IsValidWebsiteType reports whether t is an allow-listed website type.
func IsValidWebsiteType(t string) bool {
	for _, wt := range WebsiteTypes {
		if t == wt {
			return true
		}
	}
	return false
}

// heroTagline returns the per-type hero copy. Unrecognized or empty
// types fall back to the generic business line.
func heroTagline(websiteType string) string {
	switch websiteType {
	case "portfolio":
		return "Showcasing work that speaks for itself"
	case "saas":
		return "The software your team has been waiting for"
	case "restaurant":
		return "Fresh ingredients, unforgettable flavors"
	case "ecommerce":
		return "Quality products, delivered to your door"
	case "blog":
		return "Stories, ideas, and insights worth reading"
	default:
		return "Welcome to our business"
	}
}

// RenderHTML renders the standalone HTML5 document for a project. The
// output always starts with <!DOCTYPE html>, declares <html lang="en">,
// embeds the stylesheet inline in a <style> block, and closes with
// </html>. The same stylesheet is used for every website type.
func RenderHTML(project *models.Project) string {
	name := project.BusinessName
	if name == "" {
		name = "My Website"
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString("<html lang=\"en\">\n")
	b.WriteString("<head>\n")
	b.WriteString("  <meta charset=\"UTF-8\">\n")
	b.WriteString("  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", name)
	b.WriteString("  <style>\n")
	b.WriteString(RenderCSS(project))
	b.WriteString("  </style>\n")
	b.WriteString("</head>\n")
	b.WriteString("<body>\n")
	b.WriteString("  <header class=\"site-header\">\n")
	b.WriteString("    <nav class=\"nav\">\n")
	fmt.Fprintf(&b, "      <span class=\"logo\">%s</span>\n", name)
	b.WriteString("      <ul class=\"nav-links\">\n")
	b.WriteString("        <li><a href=\"#home\">Home</a></li>\n")
	b.WriteString("        <li><a href=\"#features\">Features</a></li>\n")
	b.WriteString("        <li><a href=\"#contact\">Contact</a></li>\n")
	b.WriteString("      </ul>\n")
	b.WriteString("    </nav>\n")
	b.WriteString("  </header>\n")
	b.WriteString("  <section id=\"home\" class=\"hero\">\n")
	fmt.Fprintf(&b, "    <h1>%s</h1>\n", name)
	fmt.Fprintf(&b, "    <p class=\"tagline\">%s</p>\n", heroTagline(project.WebsiteType))
	if project.Prompt != "" {
		fmt.Fprintf(&b, "    <p class=\"description\">%s</p>\n", project.Prompt)
	}
	b.WriteString("    <a class=\"cta\" href=\"#contact\">Get Started</a>\n")
	b.WriteString("  </section>\n")
	b.WriteString("  <section id=\"features\" class=\"features\">\n")
	b.WriteString("    <h2>What We Offer</h2>\n")
	b.WriteString("    <div class=\"feature-grid\">\n")
	b.WriteString("      <div class=\"feature-card\"><h3>Quality</h3><p>Built with attention to every detail.</p></div>\n")
	b.WriteString("      <div class=\"feature-card\"><h3>Speed</h3><p>Fast, responsive, and reliable.</p></div>\n")
	b.WriteString("      <div class=\"feature-card\"><h3>Support</h3><p>We're here whenever you need us.</p></div>\n")
	b.WriteString("    </div>\n")
	b.WriteString("  </section>\n")
	b.WriteString("  <footer id=\"contact\" class=\"site-footer\">\n")
	fmt.Fprintf(&b, "    <p>&copy; %s. All rights reserved.</p>\n", name)
	b.WriteString("  </footer>\n")
	b.WriteString("</body>\n")
	b.WriteString("</html>\n")
	return b.String()
}

// RenderCSS returns the stylesheet for a project. The output is the
// same for every website type; per-type theming is a product decision
// that has not landed yet, so the parameter shape is kept.
func RenderCSS(_ *models.Project) string {
	return `* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: 'Segoe UI', system-ui, sans-serif; color: #1a202c; line-height: 1.6; }
.site-header { background: #ffffff; box-shadow: 0 1px 3px rgba(0,0,0,0.1); position: sticky; top: 0; }
.nav { display: flex; justify-content: space-between; align-items: center; max-width: 1100px; margin: 0 auto; padding: 1rem 1.5rem; }
.logo { font-size: 1.25rem; font-weight: 700; }
.nav-links { display: flex; gap: 1.5rem; list-style: none; }
.nav-links a { color: #1a202c; text-decoration: none; }
.hero { text-align: center; padding: 6rem 1.5rem; background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: #ffffff; }
.hero h1 { font-size: 2.75rem; margin-bottom: 1rem; }
.tagline { font-size: 1.25rem; opacity: 0.9; }
.description { max-width: 640px; margin: 1rem auto 0; opacity: 0.85; }
.cta { display: inline-block; margin-top: 2rem; padding: 0.75rem 2rem; background: #ffffff; color: #667eea; border-radius: 9999px; text-decoration: none; font-weight: 600; }
.features { max-width: 1100px; margin: 0 auto; padding: 4rem 1.5rem; text-align: center; }
.feature-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(240px, 1fr)); gap: 1.5rem; margin-top: 2rem; }
.feature-card { padding: 2rem; border: 1px solid #e2e8f0; border-radius: 12px; }
.site-footer { text-align: center; padding: 2rem 1.5rem; background: #1a202c; color: #ffffff; }
`
}

// Components returns the structured component list for a generated
// project, mirroring the sections of the rendered document.
func Components(project *models.Project) []models.Component {
	name := project.BusinessName
	if name == "" {
		name = "My Website"
	}
	return []models.Component{
		{Type: "header", Props: map[string]any{"logo": name, "links": []string{"Home", "Features", "Contact"}}},
		{Type: "hero", Props: map[string]any{"title": name, "tagline": heroTagline(project.WebsiteType)}},
		{Type: "features", Props: map[string]any{"count": 3}},
		{Type: "footer", Props: map[string]any{"text": name}},
	}
}
