package transfer

// Target names an existing post on each service. Either side may be empty.
type Target struct {
	TwitterID string `json:"twitter_id,omitempty"`
	BlueskyID string `json:"bluesky_id,omitempty"`
}

func (t Target) Empty() bool {
	return t.TwitterID == "" && t.BlueskyID == ""
}

type Services struct {
	Twitter bool `json:"twitter"`
	Bluesky bool `json:"bluesky"`
}

// Composition is one publish request. Files are local paths owned by the
// request and removed once every service has settled.
type Composition struct {
	Text     string
	Files    []string
	Services Services
	Reply    Target
	Quote    Target
}

// Draft is what a single backend receives. QuoteOf is that backend's own id
// for the quoted post.
type Draft struct {
	Text    string
	Files   []string
	QuoteOf string
}

type PlatformResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type Results map[string]PlatformResult

func (r Results) AllOK() bool {
	for _, res := range r {
		if !res.OK {
			return false
		}
	}
	return true
}

type DeleteRequest struct {
	TwitterID string `json:"twitterId" form:"twitterId"`
	BlueskyID string `json:"blueskyId" form:"blueskyId"`
}
