package dfs

import (
	"regexp"
	"strings"
)

var dfsHostPattern = regexp.MustCompile(`^[^.]+.dfs.(preprod.){0,1}core.windows.net$`)

// ContainsDFSURL reports whether s is a DFS host name such as
// "myaccount.dfs.core.windows.net".
func ContainsDFSURL(s string) bool {
	return s != "" && dfsHostPattern.MatchString(s)
}

// ExtractRawAccount returns the account label of a DFS host name.
//
//	ExtractRawAccount("myaccount.dfs.core.windows.net") // "myaccount", true
//	ExtractRawAccount("myaccount")                      // "", false
func ExtractRawAccount(accountName string) (string, bool) {
	if !ContainsDFSURL(accountName) {
		return "", false
	}
	raw, _, _ := strings.Cut(accountName, ".")
	return raw, true
}
