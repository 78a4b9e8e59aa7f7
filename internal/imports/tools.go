// Package imports pulls in every tool package so their init functions register them.
package imports

import (
	_ "github.com/seo-tools/trendtags/internal/tools/trendtags"
	_ "github.com/seo-tools/trendtags/internal/tools/utilities/toolhelp"
)
