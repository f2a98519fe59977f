// Package views finds the enabled search views of every institution from
// their configuration files.
package views

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/ini.v1"
)

// DefaultView is the view name of an institution's main site.
const DefaultView = "default"

// View is one institution view with an analytics site.
type View struct {
	Institution string
	Name        string
	URL         string
	SiteID      string
}

// FileStem is the report file name without extension.
func (v View) FileStem() string {
	if v.Name == DefaultView {
		return "statistics-" + v.Institution
	}
	return "statistics-" + v.Institution + "-" + v.Name
}

// Address is the public host and path of the view under domain.
func (v View) Address(domain string) string {
	if v.Name == DefaultView {
		return v.Institution + "." + domain
	}
	return v.Institution + "." + domain + "/" + v.Name
}

func (v View) String() string {
	return v.Institution + "/" + v.Name
}

// Discover reads <baseDir>/<institution>/<view>/local/config/vufind/config.ini
// for every view in lexicographic path order. Default views, unreadable
// files and views with System.available set to false are skipped.
func Discover(baseDir string, logger *slog.Logger) ([]View, error) {
	pattern := filepath.Join(baseDir, "*", "*", "local", "config", "vufind", "config.ini")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing view configurations: %w", err)
	}

	var views []View
	for _, path := range paths {
		viewDir := filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(path))))
		name := filepath.Base(viewDir)
		institution := filepath.Base(filepath.Dir(viewDir))
		if name == DefaultView {
			continue
		}

		if _, err := os.Stat(path); err != nil {
			logger.Warn("Skipping unreadable view configuration", slog.String("path", path), slog.Any("error", err))
			continue
		}

		cfg, err := ini.LoadSources(ini.LoadOptions{
			Loose:            true,
			AllowBooleanKeys: true,
		}, path)
		if err != nil {
			logger.Warn("Skipping invalid view configuration", slog.String("path", path), slog.Any("error", err))
			continue
		}

		if !cfg.Section("System").Key("available").MustBool(true) {
			logger.Debug("Skipping disabled view", slog.String("view", institution+"/"+name))
			continue
		}

		views = append(views, View{
			Institution: institution,
			Name:        name,
			URL:         cfg.Section("Site").Key("url").String(),
			SiteID:      cfg.Section("Piwik").Key("site_id").String(),
		})
	}

	return views, nil
}

// Filter keeps the views of the given institutions and analytics site ids;
// an empty list does not filter.
func Filter(views []View, institutions, siteIDs []string) []View {
	var out []View
	for _, v := range views {
		if len(institutions) > 0 && !slices.Contains(institutions, v.Institution) {
			continue
		}
		if len(siteIDs) > 0 && !slices.Contains(siteIDs, v.SiteID) {
			continue
		}
		out = append(out, v)
	}
	return out
}
