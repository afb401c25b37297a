package resolver

import (
	"strings"

	"gistloop/internal/projectindex"
)

func searchBlock(keyword string, paths []string) string {
	files := make([]string, len(paths))
	for i, p := range paths {
		files[i] = "<file>" + p + "</file>"
	}
	return "You requested to search for : " + keyword + "\nHere are the results:<files>" +
		strings.Join(files, ", ") + "</files>\n"
}

func noMatchBlock(keyword string) string {
	return "No matching files found with '" + keyword + "'\n"
}

func fileBlock(name, summary, content string) string {
	return "<file name=\"" + name + "\">\n" +
		"    <summary>" + summary + "</summary>\n" +
		"    <content>" + content + "</content>\n" +
		"</file>\n"
}

func fileMissingBlock(name string) string {
	return "<file name=\"" + name + "\">\n" +
		"    <error>File not found. Do not request it again.</error>\n" +
		"</file>\n"
}

func packageBlock(info projectindex.NamespaceInfo) string {
	names := make([]string, len(info.Files))
	for i, f := range info.Files {
		names[i] = f.Name
	}
	return "<package name=\"" + info.Path + "\">\n" +
		"    <notes>" + info.Summary + "</notes>\n" +
		"    <sub_packages>" + strings.Join(info.Children, ", ") + "</sub_packages>\n" +
		"    <files>" + strings.Join(names, ", ") + "</files>\n" +
		"</package>\n"
}

func packageMissingBlock(name string) string {
	return "<package name=\"" + name + "\">\n" +
		"    <error>Package not found.</error>\n" +
		"</package>\n"
}
