// Package render produces the static price-tag HTML document.
package render

import (
	"fmt"
	"html/template"
	"strings"
)

// TagData carries everything the tag layout needs: the product image URL and
// the display-ready (Arabic-digit) price string.
type TagData struct {
	ImageURL string
	Price    string
}

// The layout is fixed: a full-viewport product image with a circular price
// badge overlaid in the upper corner. The page background stays transparent
// so captures keep their alpha channel.
var tagTemplate = template.Must(template.New("tag").Parse(`<!DOCTYPE html>
<html lang="ar" dir="rtl">
<head>
<meta charset="utf-8">
<style>
  html, body {
    margin: 0;
    padding: 0;
    width: 100%;
    height: 100%;
    background: transparent;
    overflow: hidden;
  }
  .tag {
    position: relative;
    width: 100vw;
    height: 100vh;
  }
  .tag img {
    width: 100%;
    height: 100%;
    object-fit: contain;
  }
  .badge {
    position: absolute;
    top: 5vh;
    right: 5vw;
    width: 24vh;
    height: 24vh;
    border-radius: 50%;
    background: #d32f2f;
    color: #ffffff;
    display: flex;
    align-items: center;
    justify-content: center;
    font-family: Tahoma, sans-serif;
    font-size: 7vh;
    font-weight: 700;
  }
</style>
</head>
<body>
<div class="tag">
  <img src="{{.ImageURL}}" alt="">
  <div class="badge"><span>{{.Price}}</span></div>
</div>
</body>
</html>
`))

// Render executes the tag layout for the given data. It is deterministic and
// touches no external state.
func Render(data TagData) (string, error) {
	var b strings.Builder
	if err := tagTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("execute tag template: %w", err)
	}
	return b.String(), nil
}
