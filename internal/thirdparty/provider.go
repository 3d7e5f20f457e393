// Package thirdparty addresses folders and files kept in external stores.
// Every such entry has a composite id "<prefix>-<link id>[-<path>]" where
// path is the provider-native path with '/' written as '|'.
package thirdparty

import (
	"strings"
)

// Provider is one external store variant.
type Provider struct {
	// Key is persisted with each link.
	Key string
	// Prefix starts every composite id of the variant.
	Prefix string
	Title  string
}

var (
	Box         = Provider{Key: "box", Prefix: "box", Title: "Box"}
	Dropbox     = Provider{Key: "dropbox", Prefix: "dropbox", Title: "Dropbox"}
	GoogleDrive = Provider{Key: "googledrive", Prefix: "drive", Title: "Google Drive"}
	OneDrive    = Provider{Key: "onedrive", Prefix: "onedrive", Title: "OneDrive"}
	SharePoint  = Provider{Key: "sharepoint", Prefix: "spoint", Title: "SharePoint"}
	WebDav      = Provider{Key: "webdav", Prefix: "sbox", Title: "WebDAV"}
	S3          = Provider{Key: "s3", Prefix: "s3", Title: "Amazon S3"}
)

// Providers lists every variant in the order selectors are consulted.
var Providers = []Provider{Box, Dropbox, GoogleDrive, OneDrive, SharePoint, WebDav, S3}

// ProviderByKey finds a variant by its key, ignoring case.
func ProviderByKey(key string) (Provider, bool) {
	for _, p := range Providers {
		if strings.EqualFold(p.Key, key) {
			return p, true
		}
	}
	return Provider{}, false
}

// Prefixes returns the id prefix of every variant. The identity mapper
// hashes ids carrying one of them.
func Prefixes() []string {
	out := make([]string, len(Providers))
	for i, p := range Providers {
		out[i] = p.Prefix
	}
	return out
}
