package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"profile-service/handlers"
	"profile-service/models"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const janeID = "3b241101-e2bb-4255-8caf-4136c566a962"

type profileFixture struct {
	users    *fakeUserStore
	profiles *fakeProfileStore
	accounts *fakeAccountStore
	handler  *handlers.ProfileHandler
}

func newProfileFixture(t *testing.T) profileFixture {
	users := newFakeUserStore()
	seedUser(t, users, janeID, "Jane", "jane@example.com", "secret1")
	profiles := newFakeProfileStore(users)
	accounts := &fakeAccountStore{users: users, profiles: profiles}
	return profileFixture{
		users:    users,
		profiles: profiles,
		accounts: accounts,
		handler:  handlers.NewProfileHandler(profiles, accounts, zap.NewNop()),
	}
}

func decodeProfile(t *testing.T, body []byte) models.Profile {
	t.Helper()
	var profile models.Profile
	require.NoError(t, json.Unmarshal(body, &profile))
	return profile
}

func (f profileFixture) upsert(t *testing.T, body string) models.Profile {
	t.Helper()
	rec := executeRequest(f.handler.Upsert, newRequest(http.MethodPost, "/api/profile", body, janeID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeProfile(t, rec.Body.Bytes())
}

func TestMeWithoutProfile(t *testing.T) {
	f := newProfileFixture(t)

	rec := executeRequest(f.handler.Me, newRequest(http.MethodGet, "/api/profile/me", "", janeID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "There is no profile for this user", decodeMessage(t, rec))
}

func TestMeReturnsPopulatedProfile(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go"}`)

	rec := executeRequest(f.handler.Me, newRequest(http.MethodGet, "/api/profile/me", "", janeID))
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeProfile(t, rec.Body.Bytes())
	assert.Equal(t, "Jane", profile.User.Name)
	assert.NotEmpty(t, profile.User.Avatar)
}

func TestUpsertCreatesProfileWithTrimmedSkills(t *testing.T) {
	f := newProfileFixture(t)

	profile := f.upsert(t, `{"status":"Developer","skills":" go,  sql ,, docker ","company":"Acme","twitter":"https://twitter.com/jane"}`)

	assert.Equal(t, []string{"go", "sql", "docker"}, profile.Skills)
	assert.Equal(t, "Acme", profile.Company)
	assert.Equal(t, "https://twitter.com/jane", profile.Social.Twitter)
}

func TestUpsertAcceptsSkillsArray(t *testing.T) {
	f := newProfileFixture(t)

	profile := f.upsert(t, `{"status":"Developer","skills":["go"," rust "]}`)
	assert.Equal(t, []string{"go", "rust"}, profile.Skills)
}

func TestUpsertTwicePreservesAbsentFields(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go","company":"Acme","location":"Berlin","twitter":"https://twitter.com/jane","youtube":"https://youtube.com/jane"}`)

	profile := f.upsert(t, `{"status":"Senior Developer","skills":"go,sql","bio":"Hello","twitter":"https://twitter.com/jane2"}`)

	assert.Equal(t, "Senior Developer", profile.Status)
	assert.Equal(t, []string{"go", "sql"}, profile.Skills)
	assert.Equal(t, "Hello", profile.Bio)
	assert.Equal(t, "Acme", profile.Company)
	assert.Equal(t, "Berlin", profile.Location)
	assert.Equal(t, "https://twitter.com/jane2", profile.Social.Twitter)
	assert.Equal(t, "https://youtube.com/jane", profile.Social.YouTube)
	assert.Len(t, f.profiles.profiles, 1)
}

func TestUpsertBlankFieldsCountAsAbsent(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go","company":"Acme"}`)

	profile := f.upsert(t, `{"status":"Developer","skills":"go","company":"   "}`)
	assert.Equal(t, "Acme", profile.Company)
}

func TestUpsertSanitizesBio(t *testing.T) {
	f := newProfileFixture(t)

	profile := f.upsert(t, `{"status":"Developer","skills":"go","bio":"<script>alert(1)</script>Hi"}`)
	assert.Equal(t, "Hi", profile.Bio)
}

func TestUpsertKeepsBioPunctuation(t *testing.T) {
	f := newProfileFixture(t)

	profile := f.upsert(t, `{"status":"Developer","skills":"go","bio":"I'm \"here\" & <b>"}`)
	assert.Equal(t, `I'm "here" &`, profile.Bio)

	rec := executeRequest(f.handler.Me, newRequest(http.MethodGet, "/api/profile/me", "", janeID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `I'm "here" &`, decodeProfile(t, rec.Body.Bytes()).Bio)
}

func TestUpsertValidation(t *testing.T) {
	f := newProfileFixture(t)

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"missing status and skills", `{}`, []string{"Status is required", "Skills is required"}},
		{"only separators in skills", `{"status":"Developer","skills":" , ,"}`, []string{"Skills is required"}},
		{"bad website", `{"status":"Developer","skills":"go","website":"not a url"}`, []string{"Please include a valid URL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := executeRequest(f.handler.Upsert, newRequest(http.MethodPost, "/api/profile", tt.body, janeID))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, messages(decodeFieldErrors(t, rec)))
		})
	}
	assert.Empty(t, f.profiles.profiles)
}

func TestUpsertEmptyBodyReportsRequiredFields(t *testing.T) {
	f := newProfileFixture(t)

	rec := executeRequest(f.handler.Upsert, newRequest(http.MethodPost, "/api/profile", "", janeID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"Status is required", "Skills is required"}, messages(decodeFieldErrors(t, rec)))
	assert.Empty(t, f.profiles.profiles)
}

func TestUpsertForDeletedUser(t *testing.T) {
	f := newProfileFixture(t)
	delete(f.users.users, janeID)

	rec := executeRequest(f.handler.Upsert, newRequest(http.MethodPost, "/api/profile", `{"status":"Developer","skills":"go"}`, janeID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User not found", decodeMessage(t, rec))
	assert.Empty(t, f.profiles.profiles)
}

func TestListProfiles(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go"}`)

	rec := executeRequest(f.handler.List, newRequest(http.MethodGet, "/api/profile", "", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var profiles []models.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profiles))
	require.Len(t, profiles, 1)
	assert.Equal(t, janeID, profiles[0].User.ID)
}

func TestProfileByUser(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go"}`)

	tests := []struct {
		name   string
		userID string
		status int
	}{
		{"found", janeID, http.StatusOK},
		{"malformed id", "not-an-id", http.StatusBadRequest},
		{"no profile", "9f1b3a4c-0000-4000-8000-000000000000", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mux.SetURLVars(newRequest(http.MethodGet, "/api/profile/user/"+tt.userID, "", ""), map[string]string{"user_id": tt.userID})
			rec := executeRequest(f.handler.ByUser, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusBadRequest {
				assert.Equal(t, "Profile not found", decodeMessage(t, rec))
			}
		})
	}
}

func TestDeleteAccountKeepsPosts(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go"}`)
	seedUser(t, f.users, "other-user", "Bob", "bob@example.com", "secret1")

	posts := newFakePostStore()
	require.NoError(t, posts.Create(context.Background(), models.Post{ID: "post-1", User: janeID, Text: "still here"}))

	rec := executeRequest(f.handler.DeleteAccount, newRequest(http.MethodDelete, "/api/profile", "", janeID))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted", decodeMessage(t, rec))
	assert.Empty(t, f.profiles.profiles)
	assert.NotContains(t, f.users.users, janeID)
	assert.Contains(t, f.users.users, "other-user")
	assert.Contains(t, posts.posts, "post-1")
	assert.Equal(t, janeID, posts.posts["post-1"].User)
}

func TestDeleteAccountFailure(t *testing.T) {
	f := newProfileFixture(t)
	f.accounts.err = errors.New("tx aborted")

	rec := executeRequest(f.handler.DeleteAccount, newRequest(http.MethodDelete, "/api/profile", "", janeID))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server Error", decodeMessage(t, rec))
}

func addExperience(t *testing.T, f profileFixture, body string) *httpResult {
	t.Helper()
	rec := executeRequest(f.handler.AddExperience, newRequest(http.MethodPut, "/api/profile/experience", body, janeID))
	return &httpResult{code: rec.Code, body: rec.Body.Bytes()}
}

type httpResult struct {
	code int
	body []byte
}

func TestAddExperiencePrepends(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go"}`)

	first := addExperience(t, f, `{"title":"Junior","company":"Acme","from":"2018-01-01","to":"2019-12-31"}`)
	require.Equal(t, http.StatusOK, first.code)
	second := addExperience(t, f, `{"title":"Senior","company":"Globex","from":"2020-01-01T00:00:00Z","current":true,"description":"<b>Lead</b> of R&D"}`)
	require.Equal(t, http.StatusOK, second.code)

	profile := decodeProfile(t, second.body)
	require.Len(t, profile.Experience, 2)
	assert.Equal(t, "Senior", profile.Experience[0].Title)
	assert.True(t, profile.Experience[0].Current)
	assert.Nil(t, profile.Experience[0].To)
	assert.Equal(t, "Lead of R&D", profile.Experience[0].Description)
	assert.Equal(t, "Junior", profile.Experience[1].Title)
	require.NotNil(t, profile.Experience[1].To)
	assert.Equal(t, 2019, profile.Experience[1].To.Year())
	assert.NotEqual(t, profile.Experience[0].ID, profile.Experience[1].ID)
}

func TestAddExperienceValidation(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go"}`)

	missing := addExperience(t, f, `{"company":"Acme"}`)
	assert.Equal(t, http.StatusBadRequest, missing.code)
	var body struct {
		Errors []struct {
			Msg string `json:"msg"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(missing.body, &body))
	require.Len(t, body.Errors, 2)
	assert.Equal(t, "Title is required", body.Errors[0].Msg)
	assert.Equal(t, "From date is required", body.Errors[1].Msg)

	badDate := addExperience(t, f, `{"title":"Dev","company":"Acme","from":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, badDate.code)
	assert.Contains(t, string(badDate.body), "From date must be a valid date")
}

func TestAddExperienceWithoutProfile(t *testing.T) {
	f := newProfileFixture(t)

	res := addExperience(t, f, `{"title":"Dev","company":"Acme","from":"2020-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, string(res.body), "There is no profile for this user")
}

func TestRemoveExperienceRemovesExactlyOne(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go"}`)
	addExperience(t, f, `{"title":"A","company":"Acme","from":"2018-01-01"}`)
	addExperience(t, f, `{"title":"B","company":"Acme","from":"2019-01-01"}`)
	res := addExperience(t, f, `{"title":"C","company":"Acme","from":"2020-01-01"}`)
	before := decodeProfile(t, res.body).Experience
	require.Len(t, before, 3)

	target := before[1]
	req := mux.SetURLVars(newRequest(http.MethodDelete, "/api/profile/experience/"+target.ID, "", janeID), map[string]string{"exp_id": target.ID})
	rec := executeRequest(f.handler.RemoveExperience, req)

	require.Equal(t, http.StatusOK, rec.Code)
	after := decodeProfile(t, rec.Body.Bytes()).Experience
	require.Len(t, after, 2)
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[2], after[1])
}

func TestRemoveExperienceUnknownID(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go"}`)
	addExperience(t, f, `{"title":"A","company":"Acme","from":"2018-01-01"}`)

	req := mux.SetURLVars(newRequest(http.MethodDelete, "/api/profile/experience/missing", "", janeID), map[string]string{"exp_id": "missing"})
	rec := executeRequest(f.handler.RemoveExperience, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Experience not found", decodeMessage(t, rec))
	assert.Len(t, f.profiles.profiles[janeID].Experience, 1)
}

func TestEducationLifecycle(t *testing.T) {
	f := newProfileFixture(t)
	f.upsert(t, `{"status":"Developer","skills":"go"}`)

	rec := executeRequest(f.handler.AddEducation, newRequest(http.MethodPut, "/api/profile/education",
		`{"school":"MIT","degree":"BSc","fieldofstudy":"CS","from":"2010-09-01","to":"2014-06-01"}`, janeID))
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeProfile(t, rec.Body.Bytes())
	require.Len(t, profile.Education, 1)
	entry := profile.Education[0]
	assert.Equal(t, "CS", entry.FieldOfStudy)

	missing := mux.SetURLVars(newRequest(http.MethodDelete, "/api/profile/education/nope", "", janeID), map[string]string{"edu_id": "nope"})
	rec = executeRequest(f.handler.RemoveEducation, missing)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Education not found", decodeMessage(t, rec))

	remove := mux.SetURLVars(newRequest(http.MethodDelete, "/api/profile/education/"+entry.ID, "", janeID), map[string]string{"edu_id": entry.ID})
	rec = executeRequest(f.handler.RemoveEducation, remove)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeProfile(t, rec.Body.Bytes()).Education)
}

func TestAddEducationValidation(t *testing.T) {
	f := newProfileFixture(t)

	rec := executeRequest(f.handler.AddEducation, newRequest(http.MethodPut, "/api/profile/education", `{"school":"MIT"}`, janeID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"Degree is required", "Field of study is required", "From date is required"}, messages(decodeFieldErrors(t, rec)))
}

func TestRemoveEducationWithoutProfile(t *testing.T) {
	f := newProfileFixture(t)

	req := mux.SetURLVars(newRequest(http.MethodDelete, "/api/profile/education/x", "", janeID), map[string]string{"edu_id": "x"})
	rec := executeRequest(f.handler.RemoveEducation, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "There is no profile for this user", decodeMessage(t, rec))
}
