package wall

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
)

type authorResponse struct {
	UserID   ID     `json:"id"`
	Username string `json:"username"`
}

type postResponse struct {
	ID           PostID         `json:"id"`
	Message      string         `json:"message"`
	Author       authorResponse `json:"author"`
	Wall         authorResponse `json:"wall"`
	Attachment   string         `json:"attachment,omitempty"`
	PublishedAt  time.Time      `json:"publishedAt"`
	LikeCount    int            `json:"likes"`
	RecentLikers []ID           `json:"recentLikes"`
}

type listResponse struct {
	Label string         `json:"label"`
	Posts []postResponse `json:"posts"`
}

type viewerResponse struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
}

type feedResponse struct {
	AuthenticatedUser *viewerResponse `json:"authenticatedUser,omitempty"`
	PostsLikedByUser  []PostID        `json:"postsLikedByUser,omitempty"`
	SortBy            string          `json:"sortby,omitempty"`
	Lists             []listResponse  `json:"lists"`
}

func GetFeedHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		view, err := svc.GetFeed(r.Context(), ViewerFromContext(r.Context()), r.URL.Query().Get("sortby"))
		if err != nil {
			encodeError(err, w)
			return
		}
		encodeResponse(w, http.StatusOK, feedResponseFromView(view))
	})
}

func GetWallHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		username := httprouter.ParamsFromContext(r.Context()).ByName("username")
		view, err := svc.GetWallFeed(r.Context(), ViewerFromContext(r.Context()), username, r.URL.Query().Get("sortby"))
		if err != nil {
			encodeError(err, w)
			return
		}
		encodeResponse(w, http.StatusOK, feedResponseFromView(view))
	})
}

func GetPostHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		id, err := postIDParam(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		p, err := svc.GetPost(id)
		if err != nil {
			encodeError(err, w)
			return
		}
		encodeResponse(w, http.StatusOK, postResponseFromPost(p))
	})
}

// CreatePostHandler publishes on the wall named by the :username route parameter,
// or on the viewer's own wall for routes without one.
func CreatePostHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		req, err := decodeCreatePostRequest(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		wallUsername := httprouter.ParamsFromContext(r.Context()).ByName("username")
		p, err := svc.CreatePost(ViewerFromContext(r.Context()), wallUsername, req)
		if err != nil {
			encodeError(err, w)
			return
		}

		w.Header().Set("Location", fmt.Sprintf("/v1/posts/%d", p.ID))
		encodeResponse(w, http.StatusCreated, postResponseFromPost(p))
	})
}

func LikePostHandler(svc Service) http.Handler {
	return likeHandler(svc.LikePost)
}

func UnlikePostHandler(svc Service) http.Handler {
	return likeHandler(svc.UnlikePost)
}

func likeHandler(apply func(PostID, *User) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		id, err := postIDParam(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := apply(id, ViewerFromContext(r.Context())); err != nil {
			encodeError(err, w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func encodeError(err error, w http.ResponseWriter) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, ErrPostNotFound), errors.Is(err, ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrInputTooLong):
		w.WriteHeader(http.StatusUnprocessableEntity)
	case errors.Is(err, ErrTimeout):
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func encodeResponse(w http.ResponseWriter, code int, v interface{}) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// decodeCreatePostRequest reads message and attachment; other fields are ignored.
func decodeCreatePostRequest(body io.ReadCloser) (createPostRequest, error) {
	req := createPostRequest{}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return createPostRequest{}, err
	}
	return req, nil
}

func postIDParam(r *http.Request) (PostID, error) {
	id, err := strconv.ParseInt(httprouter.ParamsFromContext(r.Context()).ByName("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return PostID(id), nil
}

func feedResponseFromView(v FeedView) feedResponse {
	res := feedResponse{SortBy: v.SortBy, Lists: []listResponse{}}
	if v.Viewer != nil {
		res.AuthenticatedUser = &viewerResponse{ID: v.Viewer.ID, Username: v.Viewer.Username}
		res.PostsLikedByUser = v.LikedPostIDs
	}
	for _, l := range v.Lists {
		lr := listResponse{Label: l.Label, Posts: []postResponse{}}
		for _, p := range l.Posts {
			lr.Posts = append(lr.Posts, postResponseFromPost(p))
		}
		res.Lists = append(res.Lists, lr)
	}
	return res
}

func postResponseFromPost(p *Post) postResponse {
	return postResponse{
		ID:           p.ID,
		Message:      p.Message,
		Author:       authorResponse{UserID: p.Author.UserID, Username: p.Author.Username},
		Wall:         authorResponse{UserID: p.Wall.UserID, Username: p.Wall.Username},
		Attachment:   p.Attachment,
		PublishedAt:  p.PublishedAt,
		LikeCount:    p.LikeCount,
		RecentLikers: p.RecentLikers,
	}
}
