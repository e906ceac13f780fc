package config

import "strings"

// ICSConfig names the product stamped into the PRODID of rewritten payloads.
type ICSConfig struct {
	CompanyName string
	ProductName string
	Version     string
	Language    string
}

// BuildProdID formats an RFC 5545 PRODID such as
// "-//Calendar Engine//Occurrences 1.0.0//EN".
func (cfg *ICSConfig) BuildProdID() string {
	product := strings.TrimSpace(cfg.ProductName + " " + cfg.Version)
	lang := cfg.Language
	if lang == "" {
		lang = "EN"
	}
	return "-//" + cfg.CompanyName + "//" + product + "//" + lang
}
