package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyResourceBlocking intercepts requests on page and fails those whose
// resource type is listed. The stock page only needs its documents and
// scripts; images and fonts are dead weight. Plural names are accepted.
func applyResourceBlocking(page *rod.Page, types []string) *rod.HijackRouter {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[singular(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(blockSet, h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

func shouldBlock(blockSet map[string]bool, resType proto.NetworkResourceType) bool {
	return blockSet[singular(string(resType))]
}

func singular(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "media" {
		return s
	}
	return strings.TrimSuffix(s, "s")
}
