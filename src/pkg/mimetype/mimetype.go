package mimetype

import "strings"

// Default is returned for unknown or missing extensions.
const Default = "application/octet-stream"

var byExtension = map[string]string{
	// Images
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"bmp":  "image/bmp",
	"arw":  "image/x-sony-arw",

	// Audio
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
	"aac":  "audio/aac",

	// Video
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"wmv":  "video/x-ms-wmv",

	// Documents
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/msword",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.ms-excel",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.ms-powerpoint",
	"txt":  "text/plain",
	"rtf":  "application/rtf",
	"csv":  "text/csv",

	// Web
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"json": "application/json",
	"xml":  "application/xml",

	// Archives
	"zip": "application/zip",
	"rar": "application/vnd.rar",
	"7z":  "application/x-7z-compressed",
	"tar": "application/x-tar",
	"gz":  "application/gzip",

	// Fonts
	"ttf":   "font/ttf",
	"otf":   "font/otf",
	"woff":  "font/woff",
	"woff2": "font/woff2",

	// Source code
	"py":    "text/x-python",
	"java":  "text/x-java-source",
	"c":     "text/x-c",
	"cpp":   "text/x-c++",
	"cxx":   "text/x-c++",
	"cc":    "text/x-c++",
	"h":     "text/x-c++hdr",
	"hpp":   "text/x-c++hdr",
	"rs":    "text/x-rust",
	"go":    "text/x-go",
	"rb":    "text/x-ruby",
	"php":   "application/x-httpd-php",
	"swift": "text/x-swift",
	"kt":    "text/x-kotlin",
	"kts":   "text/x-kotlin",
	"scala": "text/x-scala",
	"pl":    "text/x-perl",
	"pm":    "text/x-perl",
	"sh":    "application/x-sh",
	"ts":    "application/typescript",
	"jsx":   "text/jsx",
	"tsx":   "text/jsx",
	"vue":   "text/x-vue",
	"dart":  "application/vnd.dart",
	"sql":   "application/sql",
	"lua":   "text/x-lua",
	"r":     "text/x-r",
	"m":     "text/x-objectivec",
}

// ForExtension maps an extension, without the dot and in any case, to a MIME
// type.
func ForExtension(ext string) string {
	if t, ok := byExtension[strings.ToLower(ext)]; ok {
		return t
	}
	return Default
}

// ForName resolves the MIME type of a file name from its extension.
func ForName(name string) string {
	return ForExtension(Extension(name))
}

// Extension returns the text after the last dot of the final path segment.
// A name whose only dot is the leading one has no extension.
func Extension(name string) string {
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 {
		return ""
	}
	return name[idx+1:]
}
