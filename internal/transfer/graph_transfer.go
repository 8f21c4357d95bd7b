package transfer

// Facebook/Instagram Graph API payloads.

type GraphErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}

type GraphIDResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type GraphSuccessResponse struct {
	Success bool `json:"success"`
}

type GraphBusinessAccount struct {
	ID string `json:"id"`
}

type GraphPage struct {
	ID                       string                `json:"id"`
	Name                     string                `json:"name"`
	AccessToken              string                `json:"access_token"`
	InstagramBusinessAccount *GraphBusinessAccount `json:"instagram_business_account"`
}

type GraphAccountsResponse struct {
	Data []GraphPage `json:"data"`
}

// GraphContainerStatus is returned when polling a media container.
type GraphContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

type GraphPermalinkResponse struct {
	ID        string `json:"id"`
	Permalink string `json:"permalink"`
}
