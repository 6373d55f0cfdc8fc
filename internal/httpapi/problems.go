package httpapi

import "net/http"

// Problem is one exercise shown to participants. FE problems ship starter
// HTML; DV problems start from an empty notebook.
type Problem struct {
	ID          any    `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Statement   string `json:"statement"`
	StarterHTML string `json:"starter_html,omitempty"`
}

// The study's problem sets are fixed for a given deployment; they live here
// rather than in storage so every instance serves the identical set.
var (
	problemsFE = []Problem{
		{
			ID:        1,
			Type:      "FE",
			Title:     "FE #1: Simple card",
			Statement: "Build a centered card with a title and button.",
			StarterHTML: "<!doctype html><html><head><style>body{font-family:sans-serif;margin:0;padding:24px}" +
				".card{max-width:420px;margin:40px auto;padding:16px;border:1px solid #e5e7eb;border-radius:12px}</style></head>" +
				"<body><div class='card'><h2>Title</h2><p>Write your content…</p><button>Action</button></div>" +
				"<script>// add click behavior here</script></body></html>",
		},
		{
			ID:        2,
			Type:      "FE",
			Title:     "FE #2: Dropdown",
			Statement: "Create a dropdown that opens/closes on click.",
			StarterHTML: "<!doctype html><html><head><style>body{font-family:sans-serif;margin:0;padding:24px}" +
				".menu{position:relative;display:inline-block}" +
				".list{position:absolute;top:36px;left:0;background:#fff;border:1px solid #e5e7eb;border-radius:8px;padding:8px;display:none}</style></head>" +
				"<body><div class='menu'><button id='toggle'>Open ▼</button>" +
				"<div id='list' class='list'><a href='#'>Item 1</a><br/><a href='#'>Item 2</a></div></div>" +
				"<script>const t=document.getElementById('toggle');const l=document.getElementById('list');" +
				"t.addEventListener('click',()=>{l.style.display=l.style.display==='block'?'none':'block';});</script></body></html>",
		},
	}

	problemsDV = []Problem{
		{ID: "DV1", Type: "DV", Title: "DV #1: Line chart", Statement: "Plot a line chart."},
		{ID: "DV2", Type: "DV", Title: "DV #2: Bar chart", Statement: "Compare categories."},
	}
)

func (s *Server) handleProblemsFE(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, problemsFE)
}

func (s *Server) handleProblemsDV(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, problemsDV)
}
