package producthunt

// graphQLRequest ist der Request-Body für die Product Hunt GraphQL-API.
type graphQLRequest struct {
	Query string `json:"query"`
}

// graphQLResponse bildet die für uns relevanten Teile der Antwort ab.
type graphQLResponse struct {
	Data struct {
		Posts struct {
			Edges []struct {
				Node postNode `json:"node"`
			} `json:"edges"`
		} `json:"posts"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type postNode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tagline     string `json:"tagline"`
	Description string `json:"description"`
	URL         string `json:"url"`
	VotesCount  int    `json:"votesCount"`
	Topics      struct {
		Edges []struct {
			Node struct {
				Name string `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"topics"`
}
