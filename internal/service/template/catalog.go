package template

import "github.com/splax/taskhub/internal/domain"

// TaskTemplate is one task stamped out when a project is created from a
// template.
type TaskTemplate struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Priority       domain.Priority `json:"priority"`
	EstimatedHours int             `json:"estimatedHours"`
	Tags           []string        `json:"tags"`
}

// Template is a built-in project blueprint.
type Template struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tasks       []TaskTemplate `json:"tasks"`
}

// EstimatedHours sums the task estimates.
func (t Template) EstimatedHours() int {
	total := 0
	for _, task := range t.Tasks {
		total += task.EstimatedHours
	}
	return total
}

var builtins = []Template{
	{
		ID:          "web-development",
		Name:        "Web Development Project",
		Description: "Template for web development projects with common tasks",
		Tasks: []TaskTemplate{
			{"Project Setup", "Initialize project structure, dependencies, and development environment", domain.PriorityHigh, 8, []string{"setup", "initialization"}},
			{"Database Design", "Design database schema and relationships", domain.PriorityHigh, 12, []string{"database", "design"}},
			{"API Development", "Develop REST API endpoints", domain.PriorityHigh, 24, []string{"api", "backend"}},
			{"Frontend Development", "Develop user interface components", domain.PriorityMedium, 32, []string{"frontend", "ui"}},
			{"Authentication System", "Implement user authentication and authorization", domain.PriorityHigh, 16, []string{"auth", "security"}},
			{"Testing", "Write and execute unit and integration tests", domain.PriorityMedium, 20, []string{"testing", "quality"}},
			{"Deployment", "Deploy application to production environment", domain.PriorityMedium, 8, []string{"deployment", "production"}},
		},
	},
	{
		ID:          "mobile-app",
		Name:        "Mobile App Development",
		Description: "Template for mobile application development projects",
		Tasks: []TaskTemplate{
			{"Requirements Analysis", "Analyze and document app requirements", domain.PriorityHigh, 16, []string{"requirements", "analysis"}},
			{"UI/UX Design", "Design user interface and user experience", domain.PriorityHigh, 24, []string{"design", "ui", "ux"}},
			{"App Development", "Develop mobile application features", domain.PriorityHigh, 40, []string{"development", "mobile"}},
			{"API Integration", "Integrate with backend APIs", domain.PriorityMedium, 16, []string{"api", "integration"}},
			{"Testing & QA", "Test app on different devices and platforms", domain.PriorityHigh, 20, []string{"testing", "qa"}},
			{"App Store Submission", "Prepare and submit app to app stores", domain.PriorityMedium, 8, []string{"submission", "store"}},
		},
	},
	{
		ID:          "data-analysis",
		Name:        "Data Analysis Project",
		Description: "Template for data analysis and reporting projects",
		Tasks: []TaskTemplate{
			{"Data Collection", "Gather and collect required data sources", domain.PriorityHigh, 12, []string{"data", "collection"}},
			{"Data Cleaning", "Clean and preprocess raw data", domain.PriorityHigh, 16, []string{"data", "cleaning"}},
			{"Exploratory Analysis", "Perform exploratory data analysis", domain.PriorityMedium, 20, []string{"analysis", "exploration"}},
			{"Statistical Analysis", "Apply statistical methods and models", domain.PriorityHigh, 24, []string{"statistics", "modeling"}},
			{"Visualization", "Create charts and visualizations", domain.PriorityMedium, 16, []string{"visualization", "charts"}},
			{"Report Generation", "Generate final analysis report", domain.PriorityMedium, 12, []string{"report", "documentation"}},
		},
	},
	{
		ID:          "marketing-campaign",
		Name:        "Marketing Campaign",
		Description: "Template for marketing campaign projects",
		Tasks: []TaskTemplate{
			{"Campaign Strategy", "Develop campaign strategy and objectives", domain.PriorityHigh, 8, []string{"strategy", "planning"}},
			{"Target Audience Research", "Research and define target audience", domain.PriorityHigh, 12, []string{"research", "audience"}},
			{"Content Creation", "Create marketing content and materials", domain.PriorityMedium, 20, []string{"content", "creative"}},
			{"Campaign Launch", "Launch marketing campaign across channels", domain.PriorityHigh, 8, []string{"launch", "execution"}},
			{"Performance Monitoring", "Monitor campaign performance and metrics", domain.PriorityMedium, 16, []string{"monitoring", "analytics"}},
			{"Campaign Optimization", "Optimize campaign based on performance data", domain.PriorityMedium, 12, []string{"optimization", "improvement"}},
		},
	},
}
