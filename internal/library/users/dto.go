package users

type UserItem struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email"`
}

type ProfileBook struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
	Author      string `json:"author"`
	Genre       string `json:"genre"`
	Publisher   string `json:"publisher"`
}

type ProfileOut struct {
	Username string        `json:"username"`
	Books    []ProfileBook `json:"books"`
}

type AdminAddUserIn struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
	Email    string `json:"email" binding:"required"`
}

type UsernameIn struct {
	Username string `json:"username" binding:"required"`
}

type AdminEditUserIn struct {
	Username    string `json:"username" binding:"required"`
	NewUsername string `json:"new_username"`
	NewPassword string `json:"new_password"`
	NewRole     string `json:"new_role"`
	NewEmail    string `json:"new_email"`
}

type RoleUpdateIn struct {
	Username string `json:"username" binding:"required"`
	NewRole  string `json:"new_role" binding:"required"`
}
