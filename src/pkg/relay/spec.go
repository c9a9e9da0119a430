package relay

import (
	"fmt"
	"strings"
)

const openAPITemplate = `%s:
  post:
    tags:
      - %s
    summary: Upload asset
    description: Stores the first file part of the body under a name derived from its content.
    parameters:
      - name: Authorization
        in: header
        required: true
        schema:
          type: string
        description: The shared upload secret
    requestBody:
      required: true
      content:
        multipart/form-data:
          schema:
            type: object
            properties:
              file:
                type: string
                format: binary
                description: The asset; its filename must carry an extension
    responses:
      '200':
        description: The public URL of the stored asset, or OK when the body had no file part
        content:
          text/plain:
            schema:
              type: string
      '400':
        description: Missing or invalid file extension
      '401':
        description: Invalid auth
      '413':
        description: Upload exceeds the size limit
      '500':
        description: Failed to upload
%s/{filename}:
  get:
    tags:
      - %s
    summary: Download asset
    description: Serves the optimized rendition when one exists, otherwise the stored bytes.
    parameters:
      - name: filename
        in: path
        required: true
        schema:
          type: string
        description: The asset identity, <digest>.<extension>
    responses:
      '200':
        description: The asset
        content:
          application/octet-stream:
            schema:
              type: string
              format: binary
      '404':
        description: Not found.`

// GetOpenAPISpec renders the relay paths. uploadPath is the upload route
// and downloadPrefix the route the identity is appended to.
func GetOpenAPISpec(uploadPath, downloadPrefix, tag string) string {
	if uploadPath == "" || downloadPrefix == "" || tag == "" {
		return ""
	}

	downloadPrefix = strings.TrimSuffix(downloadPrefix, "/")

	return fmt.Sprintf(openAPITemplate, uploadPath, tag, downloadPrefix, tag)
}
